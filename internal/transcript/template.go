package transcript

import "html/template"

var pageTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; line-height: 1.6; color: #b8c2cc; background-color: #1a1a1d; }
        .container { max-width: 1200px; margin: 0 auto; padding: 30px; background-color: #202124; box-shadow: 0 0 20px rgba(0,0,0,0.5); min-height: 100vh; }
        header { text-align: center; margin-bottom: 40px; padding-bottom: 20px; border-bottom: 1px solid #333; }
        h1 { color: #4ec9b0; font-size: 2.5em; margin-bottom: 10px; }
        .message { margin-bottom: 40px; padding: 20px; border-radius: 4px; box-shadow: 0 2px 5px rgba(0,0,0,0.3); display: flex; flex-wrap: wrap; }
        .message-content { flex: 1; min-width: 60%; }
        .message-image { flex: 0 0 35%; margin-left: 20px; display: flex; align-items: flex-start; justify-content: center; }
        .message-image img { max-width: 100%; border-radius: 8px; box-shadow: 0 4px 12px rgba(0,0,0,0.3); }
        .user { background-color: #2a2a30; border-left: 4px solid #4ec9b0; }
        .assistant { background-color: #2c2c35; border-left: 4px solid #569cd6; }
        .system { background-color: #262630; border-left: 4px solid #ce9178; font-style: italic; }
        .header { font-weight: bold; margin-bottom: 10px; display: flex; align-items: center; justify-content: space-between; }
        .timestamp { font-size: 0.8em; color: #9ba1a6; font-weight: normal; }
        .content { white-space: pre-wrap; }
        .greentext { color: #789922; font-family: monospace; }
        p { margin: 0.5em 0; }
        pre { background: #2d2d2d; padding: 15px; border-radius: 5px; overflow-x: auto; font-family: 'Consolas', 'Monaco', monospace; margin: 20px 0; border: 1px solid #444; color: #d4d4d4; }
        footer { margin-top: 50px; text-align: center; color: #9ba1a6; font-size: 0.9em; padding-top: 20px; border-top: 1px solid #333; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{.Title}}</h1>
        </header>
        <div id="conversation">
{{- range .Blocks}}
        <div class="message {{.Class}}">
            <div class="message-content">
{{- if .Header}}
                <div class="header">{{.Header}} <span class="timestamp">{{.Timestamp}}</span></div>
{{- end}}
                <div class="content">{{.Body}}</div>
            </div>
{{- if .ImageSrc}}
            <div class="message-image">
                <img src="{{.ImageSrc}}" alt="{{.ImageAlt}}" />
            </div>
{{- end}}
        </div>
{{- end}}
        </div>
        <footer>
            <p>{{.Footer}}</p>
        </footer>
    </div>
</body>
</html>
`))
