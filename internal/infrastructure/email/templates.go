package email

import "html/template"

const itemCard = `{{define "item"}}
    <div style="background-color: #f9f9f9; padding: 15px; border-radius: 5px; margin: 15px 0;">
        <h3 style="margin-top: 0;">{{.Title}}</h3>
        {{if .Thumbnail}}<img src="{{.Thumbnail}}" alt="" style="max-width: 100%; border-radius: 5px;">{{end}}
        <p>📅 Published: {{.Published}}</p>
        {{if .Summary}}<p style="color: #333;">{{.Summary}}</p>{{end}}
        <a href="{{.URL}}"
           style="display: inline-block; background-color: #ff0000; color: white;
                  padding: 10px 20px; text-decoration: none; border-radius: 5px;
                  margin-top: 10px; font-weight: bold;">
            Watch on YouTube
        </a>
    </div>
{{end}}`

const footer = `{{define "footer"}}
    <p style="color: #666; font-size: 0.9em;">
        You're receiving this email because you subscribed to YouTube channel updates.
    </p>
{{end}}`

var singleTemplate = template.Must(template.New("single").Parse(itemCard + footer + `
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #ff0000;">🎥 New Video from {{.ChannelTitle}}!</h2>
    {{range .Items}}{{template "item" .}}{{end}}
    {{template "footer"}}
</div>`))

var batchTemplate = template.Must(template.New("batch").Parse(itemCard + footer + `
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #ff0000;">🎥 {{.Count}} New Videos from {{.ChannelTitle}}!</h2>
    {{range .Items}}{{template "item" .}}{{end}}
    {{template "footer"}}
</div>`))
