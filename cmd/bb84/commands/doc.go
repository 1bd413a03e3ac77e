// Package commands defines the bb84 CLI.
//
// Commands
//
//   - demo          Encode, measure and sift once, printing every step (insecure)
//   - run           Run the full protocol, optionally with an interceptor
//   - bench         Sweep parameters and report detection statistics as CSV
//   - encrypt       Encrypt a message with a key
//   - decrypt       Decrypt a message with a key
//   - decrypt-file  Decrypt a file of "id: hex" lines with a key
//
// # Implementation
//
// The root command loads the YAML configuration before any subcommand runs
// and applies the persistent flags on top of it. glog's flags are bridged
// into the command line, so -v and --logtostderr work as usual.
package commands
