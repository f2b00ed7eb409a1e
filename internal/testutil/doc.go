// Package testutil provides stub collaborators shared by tests across
// packages. Nothing here is part of the public API.
package testutil
