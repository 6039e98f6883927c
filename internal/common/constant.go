package common

// AccessTokenHeaderName is the HTTP header carrying the bearer access token.
const AccessTokenHeaderName = "Authorization"

// RefreshTokenCookieName is the HTTP-only cookie holding the refresh token.
const RefreshTokenCookieName = "refresh_token"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "
