// Package pyenv provisions and describes Python virtual environments.
//
// It wraps the python CLI (via os/exec) to create venvs, resolves which
// interpreter to use by probing PATH candidates in order, and detects
// existing environments by their pyvenv.cfg marker file. The Env type is
// the explicit environment handle passed to the installer and launcher —
// no step ever relies on ambient "activation".
//
// Design decisions:
//   - We shell out to "python -m venv" rather than assembling a venv
//     ourselves, because the venv layout is an implementation detail of
//     the interpreter that created it.
//   - Provisioning failures are wrapped in model.CLIError with
//     ExitGeneralError, matching the original scripts' exit-1 contract,
//     and the message names the likely remediation.
//   - A small YAML state record inside the environment captures when it
//     was provisioned and what manifest digest was last installed. The
//     record is advisory (it powers "svm status") and never gates any
//     operation.
package pyenv
