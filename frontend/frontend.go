// Package frontend provides the browser side of the dev server.
package frontend

import _ "embed"

// ClientJS is the live reload client. It connects to the websocket next to
// the URL it was loaded from and reloads the page when told to.
//
//go:embed client/client.js
var ClientJS []byte
