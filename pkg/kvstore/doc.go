// Package kvstore provides the small key-value persistence port the client
// runs on, with file, SQLite, system keychain and encrypted-file backends.
package kvstore
