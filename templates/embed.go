package templates

import "embed"

//go:embed notifications/*.tmpl
var NotificationTemplateFS embed.FS
