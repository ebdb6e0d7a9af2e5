package ui

import "html/template"

var templates = template.Must(template.New("ui").Funcs(template.FuncMap{
	"nl2br": nl2br,
}).Parse(`
{{define "alert"}}<div class="alert {{.CSSClass}} dynamic-alert" role="alert" data-dismiss-after="{{.DismissAfterMS}}"><i class="fas fa-{{.Icon}} me-2"></i>{{nl2br .Message}}<button type="button" class="btn-close" aria-label="Close"></button></div>{{end}}

{{define "toast"}}<div class="toast align-items-center text-white bg-danger border-0" role="alert"><div class="d-flex"><div class="toast-body"><i class="fas fa-exclamation-circle"></i> {{.Message}}</div>{{if .Dismissible}}<button type="button" class="btn-close btn-close-white me-2 m-auto" data-bs-dismiss="toast"></button>{{end}}</div></div>{{end}}

{{define "options"}}{{range .}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}{{end}}

{{define "list"}}{{if .Items}}{{range .Items}}<div class="{{$.Class}}"><i class="fas fa-info-circle"></i> {{.}}</div>{{end}}{{else}}<p class="text-muted">No hay elementos para mostrar.</p>{{end}}{{end}}

{{define "chat_message"}}<div class="message {{.Sender}}"><div class="message-content"><strong>{{.Author}}</strong><br>{{.Body}}</div></div>{{end}}

{{define "suggestions"}}{{range .}}<button type="button" class="suggestion-btn" data-suggestion="{{.}}">{{.}}</button>{{end}}{{end}}
`))
