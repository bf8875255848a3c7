// Package cloud implements the cloud HTTP API used to log in and to discover
// the devices of an account.
//
// Every call is a signed form POST:
//
//	params    = base64(JSON request body)
//	timestamp = milliseconds since epoch
//	nonce     = random string
//	sign      = md5(signingKey + timestamp + nonce + params)
//
// and every answer is an envelope {"apiStatus": 0, "info": "...", "data": ...}.
// A non-zero apiStatus is returned as ErrAPIStatus (or ErrUnauthorized for
// token and login failures). Calls are never retried.
package cloud
