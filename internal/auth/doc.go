// Package auth provides authentication and authorisation for the railcontrol API.
//
// It implements a two-tier role model:
//   - operator: drives locomotives, starts and stops automode, switches
//     devices, blocks tracks and controls the booster
//   - observer: read-only access to the layout and the event stream
//
// Accounts are declared in the configuration file with Argon2id password
// hashes (see "railcontrol hash-password"). Login returns a short-lived JWT
// access token that is validated by signature only. The role-permission
// mapping is static.
package auth
