package repository

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyProvisioned = errors.New("order already linked to a panel server")
)
