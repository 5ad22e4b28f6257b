package domain

import "errors"

// ErrNoProfile is returned by Store.SetPhone when lazy creation is disabled
// and no profile exists for the chat ID.
var ErrNoProfile = errors.New("no user profile for chat id")
