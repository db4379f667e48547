// Package common contains shared constants and sentinel errors used across
// tentech components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// ActivationTokenParam is the query parameter carrying the activation token
// in activation links.
const ActivationTokenParam = "token"
