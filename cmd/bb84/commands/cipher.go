package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/jaskrrish/Go-BB84/internal/qkd/crypto"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
)

const (
	cipherXOR      = "xor"
	cipherCaesar   = "caesar"
	cipherVigenere = "vigenere"
)

// keyFlags select the key a cipher command uses
type keyFlags struct {
	key     string
	keyFile string
	mode    string
	cipher  string
	pf      protocolFlags
}

func (k *keyFlags) register(cmd *cobra.Command, defaultMode crypto.KeyMode) {
	fs := cmd.Flags()
	fs.StringVar(&k.key, "key", "", "key as a string of 0s and 1s (letters for vigenere)")
	fs.StringVar(&k.keyFile, "key-file", "", "file holding the key")
	fs.StringVar(&k.mode, "key-mode", string(defaultMode), "how xor turns key bits into bytes: packed or ascii")
	fs.StringVar(&k.cipher, "cipher", cipherXOR, "cipher: xor, caesar or vigenere")
	k.pf.register(fs)
}

// rawKey returns the key text from --key or --key-file, or "" if neither is set
func (k *keyFlags) rawKey() (string, error) {
	if k.key != "" && k.keyFile != "" {
		return "", fmt.Errorf("--key and --key-file are mutually exclusive")
	}
	if k.keyFile != "" {
		b, err := os.ReadFile(k.keyFile)
		if err != nil {
			return "", fmt.Errorf("reading key file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return k.key, nil
}

// bits returns the key bits. Without --key or --key-file the protocol runs
// and its distilled key is used; pass --seed to make that key reproducible.
func (k *keyFlags) bits(cmd *cobra.Command, o *rootOptions) ([]quantum.Bit, error) {
	raw, err := k.rawKey()
	if err != nil {
		return nil, err
	}
	if raw != "" {
		return quantum.ParseBits(raw)
	}

	bb84, err := o.protocol(o.source(), k.pf.config(cmd, o))
	if err != nil {
		return nil, err
	}
	out, _, err := bb84.RunWithRetry(cmd.Context(), o.cfg.Protocol.MaxAttempts)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("derived %d-bit key %s", len(out.SecretKey), crypto.Fingerprint(out.SecretKey))
	fmt.Fprintf(cmd.ErrOrStderr(), "key: %s\n", quantum.FormatBits(out.SecretKey))
	return out.SecretKey, nil
}

// apply runs the selected cipher over message in the given direction
func (k *keyFlags) apply(cmd *cobra.Command, o *rootOptions, message string, encrypt bool) (string, error) {
	switch k.cipher {
	case cipherVigenere:
		key, err := k.rawKey()
		if err != nil {
			return "", err
		}
		if encrypt {
			return crypto.EncryptVigenere(message, key)
		}
		return crypto.DecryptVigenere(message, key)

	case cipherCaesar:
		bits, err := k.bits(cmd, o)
		if err != nil {
			return "", err
		}
		if encrypt {
			return crypto.EncryptCaesar(message, bits)
		}
		return crypto.DecryptCaesar(message, bits)

	case cipherXOR:
		c, err := k.xor(cmd, o)
		if err != nil {
			return "", err
		}
		if encrypt {
			return c.EncryptHex(message), nil
		}
		return c.DecryptHex(message)

	default:
		return "", fmt.Errorf("unknown cipher %q", k.cipher)
	}
}

func (k *keyFlags) xor(cmd *cobra.Command, o *rootOptions) (*crypto.XORCipher, error) {
	mode, err := crypto.ParseKeyMode(k.mode)
	if err != nil {
		return nil, err
	}
	bits, err := k.bits(cmd, o)
	if err != nil {
		return nil, err
	}
	return crypto.NewXORCipher(bits, mode)
}

func encryptCmd(o *rootOptions) *cobra.Command {
	var k keyFlags

	cmd := &cobra.Command{
		Use:   "encrypt MESSAGE",
		Short: "Encrypt a message with a BB84 key",
		Long: `Encrypt a message. XOR output is hex encoded. Without --key or --key-file a
fresh key is distilled by running the protocol and printed on stderr.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := k.apply(cmd, o, strings.Join(args, " "), true)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	k.register(cmd, crypto.KeyPacked)
	return cmd
}

func decryptCmd(o *rootOptions) *cobra.Command {
	var k keyFlags

	cmd := &cobra.Command{
		Use:   "decrypt CIPHERTEXT",
		Short: "Decrypt a message with a BB84 key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := k.apply(cmd, o, strings.Join(args, " "), false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	k.register(cmd, crypto.KeyPacked)
	return cmd
}

func decryptFileCmd(o *rootOptions) *cobra.Command {
	var k keyFlags

	cmd := &cobra.Command{
		Use:   "decrypt-file FILE",
		Short: `Decrypt every "id: hex" line of a message file with XOR`,
		Long: `Decrypt-file reads lines of the form "id: hexciphertext" and prints each
plaintext. The key bits are used as ASCII characters by default, matching files
produced by tools that treat the key as a text string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			msgs, err := crypto.ReadMessages(f)
			if err != nil {
				return err
			}
			c, err := k.xor(cmd, o)
			if err != nil {
				return err
			}
			plain, err := crypto.DecryptMessages(c, msgs)
			if err != nil {
				return err
			}
			for _, m := range plain {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.ID, m.Plaintext)
			}
			return nil
		},
	}

	k.register(cmd, crypto.KeyASCII)
	return cmd
}
