// Package auth provides authentication and authorisation for the indicator API.
//
// There are two identities:
//   - operator: a person who logs in with the operator password and may
//     read state and history and switch light modes
//   - panel: a wall panel or browser surface holding a long-lived token
//     issued on the device with `indicator panel-token`; it may read state
//     and press widgets
//
// Both are stateless HS256 JWTs validated by signature only. The operator
// password is stored as an Argon2id PHC string in config.
package auth
