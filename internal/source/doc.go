// Package source turns command-line paths into the list of inputs to scan.
//
// Files are taken as given. Directories are walked recursively with
// godirwalk in lexical order, skipping VCS and virtualenv directories.
// Source archives (sdists, wheels, tarballs) are opened in memory and each
// matching member becomes its own input, named "archive!member".
package source
