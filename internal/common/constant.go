package common

// AccessTokenHeaderName is the gRPC metadata key that may carry the raw
// access token as an alternative to the authorization header.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName is the HTTP header / gRPC metadata key carrying
// "Bearer <token>".
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the access token in AuthorizationHeaderName values.
const BearerPrefix = "Bearer "

// DefaultRoleName is assigned to every user at creation.
const DefaultRoleName = "ROLE_USER"

// VerifyPath is the public path of the account activation endpoint.
const VerifyPath = "/api/auth/verify"
