// Package auth stores the bot account's login credentials.
//
// A Manager tries its stores in order: the system keychain (go-keyring),
// an AES-GCM encrypted file keyed with PBKDF2, and finally the
// TWITTER_USERNAME / TWITTER_EMAIL / TWITTER_PASSWORD environment variables,
// which are read-only.
package auth
