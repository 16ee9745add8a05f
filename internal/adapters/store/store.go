// Package store implements core.MessageStore in memory and on PostgreSQL.
package store

import "errors"

var ErrMessageExists = errors.New("message already exists")
