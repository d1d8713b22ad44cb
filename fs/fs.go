// Package appfs embeds the files shipped inside the binaries: SQL migrations & assets.
package appfs

import "embed"

//go:embed migrations assets assets/templates/email/_base.gohtml assets/templates/email/_base.txt
var FS embed.FS
