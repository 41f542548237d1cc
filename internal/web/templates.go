package web

import (
	"bytes"
	"html/template"

	"github.com/jaminalder/tennis-scoreboard/internal/app"
)

type templates struct {
	page  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"label": func(ev app.Event, home, away string) string {
			switch ev {
			case app.HomePoint:
				return "Point " + home
			case app.AwayPoint:
				return "Point " + away
			case app.SwapServer:
				return "Swap server"
			default:
				return "Reset match"
			}
		},
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tennis Scoreboard</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	template.Must(base.New("board").Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(indexTemplate))
	page := template.Must(template.Must(base.Clone()).New("content").Parse(`
<h1>{{.Board.Names.Home}} v {{.Board.Names.Away}}</h1>
<div hx-ext="sse" sse-connect="/match/{{.Board.ID}}/events">
  <div sse-swap="board" hx-swap="innerHTML">{{template "board" .Board}}</div>
</div>
<p><a href="/">All matches</a></p>`))
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{page: page, board: board, index: index}
}

func renderTemplate(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const indexTemplate = `<h1>Tennis Scoreboard</h1>
<form action="/match" method="post">
  <label>Best of <select name="best_of">
    {{range .Targets}}<option value="{{.}}"{{if eq . $.BestOf}} selected{{end}}>{{.}}</option>{{end}}
  </select> sets</label>
  <button type="submit">New match</button>
</form>
{{if .Matches}}
<ul class="matches">
  {{range .Matches}}
  <li><a href="/match/{{.ID}}">{{.ID}}</a> sets {{.Sets}} ({{.Status}})</li>
  {{end}}
</ul>
{{end}}`

const boardTemplate = `<div id="board" data-match="{{.ID}}">
  {{if .Error}}<div class="alert">{{.Error}}</div>{{end}}
  <dl class="score">
    <dt>Sets</dt><dd class="sets">{{.Display.Sets}}</dd>
    <dt>Games</dt><dd class="games">{{.Display.Games}}</dd>
    <dt>Points</dt><dd class="points">{{.Display.Points}}</dd>
  </dl>
  <p class="server">Serving: {{.Display.Server}}</p>
  <p class="status">{{.Display.Status}}</p>
  <div class="controls">
    {{range .Events}}
    <form hx-post="/match/{{$.ID}}/event" hx-target="#board" hx-swap="outerHTML" action="/match/{{$.ID}}/event" method="post">
      <input type="hidden" name="event" value="{{.}}">
      <button type="submit">{{label . $.Names.Home $.Names.Away}}</button>
    </form>
    {{end}}
  </div>
</div>
`
