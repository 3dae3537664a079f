package api

import (
	"html/template"
	"log"
	"net/http"
)

func renderPage(w http.ResponseWriter, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("[Web] Template render failed: %v", err)
	}
}

var pinPageTmpl = template.Must(template.New("pin").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ReadAloud</title>
<style>
body { font-family: -apple-system, sans-serif; background: #0f1117; color: #e6e6e6;
       display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
form { text-align: center; }
input { font-size: 1.5rem; padding: 0.5rem; width: 8rem; text-align: center;
        background: #1c1f2a; color: #e6e6e6; border: 1px solid #333; border-radius: 8px; }
button { font-size: 1rem; padding: 0.6rem 1.4rem; margin-top: 1rem; border: none;
         border-radius: 8px; background: #4f6df5; color: white; cursor: pointer; }
</style>
</head>
<body>
<form method="get" action="/">
  <h1>🔒 Playlist</h1>
  <input type="password" name="pin" placeholder="PIN" autofocus>
  <br>
  <button type="submit">Enter</button>
</form>
</body>
</html>
`))

var playlistPageTmpl = template.Must(template.New("playlist").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ReadAloud — Playlist</title>
<style>
body { font-family: -apple-system, sans-serif; background: #0f1117; color: #e6e6e6;
       max-width: 720px; margin: 0 auto; padding: 1rem; }
textarea { width: 100%; min-height: 8rem; background: #1c1f2a; color: #e6e6e6;
           border: 1px solid #333; border-radius: 8px; padding: 0.5rem; box-sizing: border-box; }
input, select { background: #1c1f2a; color: #e6e6e6; border: 1px solid #333;
                border-radius: 8px; padding: 0.5rem; }
button { border: none; border-radius: 8px; background: #4f6df5; color: white;
         padding: 0.5rem 1.2rem; cursor: pointer; }
.item { background: #1c1f2a; border-radius: 10px; padding: 0.8rem 1rem; margin: 0.6rem 0;
        display: flex; align-items: center; justify-content: space-between; gap: 0.6rem; }
.item a { color: #9db4ff; text-decoration: none; }
.status-processing { color: #e0b84f; }
.status-failed { color: #e05c5c; }
.meta { font-size: 0.8rem; color: #888; }
.delete { background: #3a2030; }
</style>
</head>
<body>
<h1>🎧 ReadAloud</h1>

<form method="post" action="/generate">
  <textarea name="text" placeholder="Paste text to convert to audio..." required></textarea>
  <p>
    <input type="text" name="title" placeholder="Title (optional)">
    <select name="voice">
      {{range .Voices}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
    <button type="submit">Generate</button>
  </p>
</form>

{{range .Generations}}
<div class="item">
  <div>
    {{if eq .Status "completed"}}
      <a href="{{.PlayURL}}">{{if .Title}}{{.Title}}{{else}}Untitled{{end}}</a>
    {{else if eq .Status "processing"}}
      <span class="status-processing">⏳ {{if .Title}}{{.Title}}{{else}}Generating...{{end}}</span>
    {{else}}
      <span class="status-failed">✗ {{if .Title}}{{.Title}}{{else}}Failed{{end}}</span>
      {{if .Error}}<div class="meta">{{.Error}}</div>{{end}}
    {{end}}
    <div class="meta">{{.CreatedAt.Format "Jan 2, 2006 15:04"}}</div>
  </div>
  <form method="post" action="/delete/{{.ID}}">
    <button class="delete" type="submit">Delete</button>
  </form>
</div>
{{else}}
<p class="meta">Nothing here yet — paste some text above.</p>
{{end}}
</body>
</html>
`))

var playerPageTmpl = template.Must(template.New("player").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Generation.Title}}{{.Generation.Title}}{{else}}ReadAloud{{end}}</title>
<style>
body { font-family: -apple-system, sans-serif; background: #0f1117; color: #e6e6e6;
       max-width: 560px; margin: 0 auto; padding: 2rem 1rem; text-align: center; }
audio { width: 100%; margin-top: 1.5rem; }
.description { color: #aaa; margin-top: 0.5rem; }
.status-processing { color: #e0b84f; }
.status-failed { color: #e05c5c; }
</style>
</head>
<body>
<h1>{{if .Generation.Title}}{{.Generation.Title}}{{else}}Untitled{{end}}</h1>
{{if .Generation.Description}}<p class="description">{{.Generation.Description}}</p>{{end}}

{{if eq .Generation.Status "completed"}}
<audio controls preload="metadata">
  <source src="{{.FileURL}}" type="audio/mpeg">
  Your browser does not support audio playback.
</audio>
{{else if eq .Generation.Status "processing"}}
<p class="status-processing">⏳ Still generating — check back in a minute.</p>
{{else}}
<p class="status-failed">✗ Generation failed{{if .Generation.Error}}: {{.Generation.Error}}{{end}}</p>
{{end}}
</body>
</html>
`))
