package crypto

import (
	"fmt"
	"strings"

	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

// CaesarShift reduces a key, read as a big-endian binary number, modulo 26
func CaesarShift(bits []quantum.Bit) (int, error) {
	if len(bits) == 0 {
		return 0, ErrEmptyKey
	}
	shift := 0
	for _, b := range bits {
		shift = (shift*2 + int(b)) % 26
	}
	return shift, nil
}

// EncryptCaesar shifts letters by the key's value; other characters pass through
func EncryptCaesar(message string, bits []quantum.Bit) (string, error) {
	shift, err := CaesarShift(bits)
	if err != nil {
		return "", err
	}
	return shiftLetters(message, func(int) int { return shift }), nil
}

// DecryptCaesar reverses EncryptCaesar
func DecryptCaesar(message string, bits []quantum.Bit) (string, error) {
	shift, err := CaesarShift(bits)
	if err != nil {
		return "", err
	}
	return shiftLetters(message, func(int) int { return 26 - shift }), nil
}

// EncryptVigenere shifts the i-th letter of message by the i-th letter of key
// (a=0 ... z=25), cycling the key. Non-letters are copied and do not advance
// the key.
func EncryptVigenere(message, key string) (string, error) {
	shifts, err := vigenereShifts(key)
	if err != nil {
		return "", err
	}
	return shiftLetters(message, func(i int) int { return shifts[i%len(shifts)] }), nil
}

// DecryptVigenere reverses EncryptVigenere
func DecryptVigenere(message, key string) (string, error) {
	shifts, err := vigenereShifts(key)
	if err != nil {
		return "", err
	}
	return shiftLetters(message, func(i int) int { return 26 - shifts[i%len(shifts)] }), nil
}

func vigenereShifts(key string) ([]int, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	shifts := make([]int, 0, len(key))
	for _, r := range strings.ToLower(key) {
		if r < 'a' || r > 'z' {
			return nil, fmt.Errorf("vigenere key must be letters only, got %q", r)
		}
		shifts = append(shifts, int(r-'a'))
	}
	return shifts, nil
}

// shiftLetters rotates ASCII letters; shiftFor receives the index of the
// letter among letters only
func shiftLetters(message string, shiftFor func(letter int) int) string {
	var sb strings.Builder
	sb.Grow(len(message))
	letter := 0
	for _, r := range message {
		var base rune
		switch {
		case r >= 'A' && r <= 'Z':
			base = 'A'
		case r >= 'a' && r <= 'z':
			base = 'a'
		default:
			sb.WriteRune(r)
			continue
		}
		shift := rune(shiftFor(letter) % 26)
		sb.WriteRune((r-base+shift)%26 + base)
		letter++
	}
	return sb.String()
}
