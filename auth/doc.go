// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity and key helpers.

# Caller Identity

Session authentication happens in front of this service. The authenticated
user id arrives in the X-User-ID header:

	userID, err := auth.UserFromRequest(r) // "" when anonymous

User ids become part of cache keys, so ValidateUserID rejects ids containing
':' or whitespace.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(pollID, salt)
	err := auth.ValidateAdminKey(pollID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same poll ID and salt always produce the same key. This allows validation
without storing the key in the database.

# ID Generation

Random UUIDs for database records:

	id := auth.NewID()
*/
package auth
