package domain

import "errors"

var ErrNotAuthenticated = errors.New("not authenticated")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrDuplicateIdentity = errors.New("email already registered")
var ErrOrderNotFound = errors.New("order not found")
var ErrEmptyCart = errors.New("no purchasable items")
var ErrInvalidQuantity = errors.New("quantity must not be negative")
var ErrInvalidStatus = errors.New("unknown order status")
var ErrStorageUnavailable = errors.New("backing store unavailable")
var ErrIdentityTimeout = errors.New("timed out resolving identity")
