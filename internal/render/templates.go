package render

const pageHTML = `{{define "page"}}<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .Description}}
<meta name="description" content="{{.Description}}">
{{- end}}
<style>
body { margin: 0; font-family: system-ui, -apple-system, "Segoe UI", sans-serif; color: #1f2933; }
section { padding: 48px 24px; max-width: 960px; margin: 0 auto; }
.hero { text-align: center; background-size: cover; background-position: center; }
.hero.align-left { text-align: left; }
.hero.align-right { text-align: right; }
.button { display: inline-block; padding: 12px 24px; border-radius: 6px; background: #2563eb; color: #fff; text-decoration: none; }
.button.secondary { background: #e5e7eb; color: #111827; }
.features { display: grid; gap: 24px; }
.features.cols-1 { grid-template-columns: 1fr; }
.features.cols-2 { grid-template-columns: repeat(2, 1fr); }
.features.cols-3 { grid-template-columns: repeat(3, 1fr); }
.features.cols-4 { grid-template-columns: repeat(4, 1fr); }
figure.narrow { max-width: 480px; margin: 0 auto; }
figure img { width: 100%; height: auto; }
blockquote.testimonial { font-size: 1.2em; }
.spacer-sm { height: 16px; } .spacer-md { height: 32px; } .spacer-lg { height: 64px; } .spacer-xl { height: 128px; }
form label { display: block; margin-bottom: 12px; }
@media print { .button { border: 1px solid #2563eb; } }
</style>
</head>
<body>
<main>
{{- range .Blocks}}
{{- $data := blockData . $.Page}}
{{- if eq .Type "hero"}}{{template "block-hero" $data}}
{{- else if eq .Type "text"}}{{template "block-text" $data}}
{{- else if eq .Type "image"}}{{template "block-image" $data}}
{{- else if eq .Type "features"}}{{template "block-features" $data}}
{{- else if eq .Type "cta"}}{{template "block-cta" $data}}
{{- else if eq .Type "form"}}{{template "block-form" $data}}
{{- else if eq .Type "testimonial"}}{{template "block-testimonial" $data}}
{{- else if eq .Type "countdown"}}{{template "block-countdown" $data}}
{{- else if eq .Type "spacer"}}{{template "block-spacer" $data}}
{{- end}}
{{- end}}
</main>
</body>
</html>
{{end}}`

const blockHTML = `
{{define "block-hero"}}{{with .Block.Props}}<section class="hero align-{{str .align}}" id="{{$.Block.ID}}"{{with str .backgroundImage}} style="background-image: url('{{.}}')"{{end}}>
<h1>{{str .title}}</h1>
{{- with str .subtitle}}
<p>{{.}}</p>
{{- end}}
{{- if and (str .ctaLabel) (str .ctaUrl)}}
<a class="button" href="{{str .ctaUrl}}">{{str .ctaLabel}}</a>
{{- end}}
</section>{{end}}{{end}}

{{define "block-text"}}<section class="text" id="{{.Block.ID}}">
{{richText .Block.Props.body}}
</section>{{end}}

{{define "block-image"}}{{with .Block.Props}}<section class="image" id="{{$.Block.ID}}">
<figure class="{{str .width}}">
<img src="{{str .src}}" alt="{{str .alt}}">
{{- with str .caption}}
<figcaption>{{.}}</figcaption>
{{- end}}
</figure>
</section>{{end}}{{end}}

{{define "block-features"}}{{with .Block.Props}}<section id="{{$.Block.ID}}">
{{- with str .heading}}
<h2>{{.}}</h2>
{{- end}}
<div class="features cols-{{str .columns}}">
{{- range items .items}}
<div class="feature">
{{- with str .icon}}<span class="icon">{{.}}</span>{{end}}
<h3>{{str .title}}</h3>
{{- with str .description}}
<p>{{.}}</p>
{{- end}}
</div>
{{- end}}
</div>
</section>{{end}}{{end}}

{{define "block-cta"}}{{with .Block.Props}}<section class="cta" id="{{$.Block.ID}}">
<h2>{{str .heading}}</h2>
{{- with str .body}}
<p>{{.}}</p>
{{- end}}
<a class="button {{str .style}}" href="{{str .buttonUrl}}">{{str .buttonLabel}}</a>
</section>{{end}}{{end}}

{{define "block-form"}}{{with .Block.Props}}<section class="form" id="{{$.Block.ID}}">
{{- with str .heading}}
<h2>{{.}}</h2>
{{- end}}
<form method="post"{{with $.Page.TrackerURL}} action="{{.}}"{{end}} data-success="{{str .successMessage}}">
<input type="hidden" name="block" value="{{$.Block.ID}}">
{{- range items .fields}}
<label>{{str .label}}
{{- if eq (str .kind) "textarea"}}
<textarea name="{{str .name}}"{{if str .required}} required{{end}}></textarea>
{{- else if eq (str .kind) "email"}}
<input type="email" name="{{str .name}}"{{if str .required}} required{{end}}>
{{- else if eq (str .kind) "phone"}}
<input type="tel" name="{{str .name}}"{{if str .required}} required{{end}}>
{{- else}}
<input type="text" name="{{str .name}}"{{if str .required}} required{{end}}>
{{- end}}
</label>
{{- end}}
<button class="button" type="submit">{{str .submitLabel}}</button>
</form>
</section>{{end}}{{end}}

{{define "block-testimonial"}}{{with .Block.Props}}<section id="{{$.Block.ID}}">
<blockquote class="testimonial">
<p>{{str .quote}}</p>
<footer>
{{- with str .avatar}}<img src="{{.}}" alt="" width="48" height="48">{{end}}
<cite>{{str .author}}</cite>{{with str .role}}, {{.}}{{end}}
</footer>
</blockquote>
</section>{{end}}{{end}}

{{define "block-countdown"}}{{with .Block.Props}}<section class="countdown" id="{{$.Block.ID}}" data-deadline="{{str .deadline}}">
{{- with str .heading}}
<h2>{{.}}</h2>
{{- end}}
{{- if countdownOver $.Page.Now .deadline}}
<p>{{str .expiredMessage}}</p>
{{- else}}
<p><time datetime="{{str .deadline}}">{{formatDeadline .deadline}}</time></p>
{{- end}}
</section>{{end}}{{end}}

{{define "block-spacer"}}<div class="spacer-{{str .Block.Props.size}}" aria-hidden="true"></div>{{end}}
`
