// Package bridge moves files between the local host and the foreign (WSL)
// environment.
//
// Paths are translated in two directions. [ToForeignPath] is purely
// syntactic (C:\models → /mnt/c/models) and is used to build foreign
// command arguments. The reverse direction asks the foreign environment
// itself (wslpath -w), because only it knows where its root file system is
// exposed on the host.
//
// In local mode both namespaces are the host file system: translation is the
// identity and listings read the directory directly.
package bridge
