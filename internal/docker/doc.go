// Package docker implements the container backend for svm environments.
//
// Instead of a virtual environment directory on the host, the container
// backend provisions one long-lived container per project from a
// configured Python base image, with the project directory mounted at a
// fixed workspace path. Dependency installation and both launch variants
// then run inside that container via docker exec.
//
// All backend state lives in Docker labels on the runtime container
// (svm.* keys) — there is no state file on the host. The package wraps
// the Docker Engine SDK for discovery and lifecycle operations, and
// shells out to the docker CLI where stdio attachment matters (run,
// exec), mirroring how users would invoke the same operations by hand.
package docker
