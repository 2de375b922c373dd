package cookiejar

import "github.com/WhileEndless/httpcore/internal/wire"

// Jar is the engine's cookie store collaborator. Bridge-equivalent
// callers use LoadFor to build a request's Cookie header and SaveFrom to
// apply Set-Cookie headers off a response.
type Jar interface {
	LoadFor(u *wire.URL) []*Cookie
	SaveFrom(u *wire.URL, cookies []*Cookie)
}
