package http

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"heartpredict/ml"
	"heartpredict/service"
)

// UIConfig configures the prediction form. Image paths are optional.
type UIConfig struct {
	Title           string
	BackgroundImage string
	LogoImage       string
}

// DecorativeResourceError reports an optional image that could not be loaded.
// The page falls back to a plain background; it is never fatal.
type DecorativeResourceError struct {
	Resource string
	Path     string
	Err      error
}

func (e *DecorativeResourceError) Error() string {
	return fmt.Sprintf("%s image %s: %v", e.Resource, e.Path, e.Err)
}

func (e *DecorativeResourceError) Unwrap() error { return e.Err }

// fieldLabels are shown next to each input, in ml.FeatureNames order.
var fieldLabels = []string{
	"Age",
	"Sex (1=Male, 0=Female)",
	"Chest Pain Type (0-3)",
	"Resting Blood Pressure",
	"Cholesterol",
	"Fasting Blood Sugar (1/0)",
	"Rest ECG (0-2)",
	"Max Heart Rate",
	"Exercise Induced Angina (1/0)",
	"Oldpeak",
	"Slope (0-2)",
	"Number of Major Vessels (0-3)",
	"Thalassemia (3,6,7)",
}

type decoration struct {
	data        []byte
	contentType string
}

type page struct {
	title      string
	tmpl       *template.Template
	background *decoration
	logo       *decoration
}

func newPage(cfg UIConfig, log *zap.Logger) (*page, error) {
	tmpl, err := template.New("form").Parse(formTemplate)
	if err != nil {
		return nil, err
	}
	if cfg.Title == "" {
		cfg.Title = "Heart Disease Prediction System"
	}

	pg := &page{title: cfg.Title, tmpl: tmpl}
	pg.background = loadDecoration("background", cfg.BackgroundImage, log)
	pg.logo = loadDecoration("logo", cfg.LogoImage, log)
	return pg, nil
}

func loadDecoration(resource, path string, log *zap.Logger) *decoration {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err == nil && !strings.HasPrefix(http.DetectContentType(data), "image/") {
		err = fmt.Errorf("not an image (%s)", http.DetectContentType(data))
	}
	if err != nil {
		log.Warn("decorative image unavailable, using plain background",
			zap.Error(&DecorativeResourceError{Resource: resource, Path: path, Err: err}))
		return nil
	}
	return &decoration{data: data, contentType: http.DetectContentType(data)}
}

func (pg *page) serveBackground(w http.ResponseWriter, r *http.Request) {
	serveDecoration(w, r, pg.background)
}

func (pg *page) serveLogo(w http.ResponseWriter, r *http.Request) {
	serveDecoration(w, r, pg.logo)
}

func serveDecoration(w http.ResponseWriter, r *http.Request, d *decoration) {
	if d == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", d.contentType)
	w.Header().Set("Cache-Control", "max-age=3600")
	w.Write(d.data)
}

type formField struct {
	Name  string
	Label string
	Value string
}

type formView struct {
	Title         string
	Fields        []formField
	HasBackground bool
	HasLogo       bool
	ResultLines   []string
	Warning       string
	Colour        string
}

func (pg *page) render(w http.ResponseWriter, status int, values map[string]string, update *service.DisplayUpdate) {
	view := formView{
		Title:         pg.title,
		HasBackground: pg.background != nil,
		HasLogo:       pg.logo != nil,
	}
	for i, name := range ml.FeatureNames() {
		view.Fields = append(view.Fields, formField{Name: name, Label: fieldLabels[i], Value: values[name]})
	}
	if update != nil {
		view.ResultLines = strings.Split(update.Text, "\n")
		view.Warning = update.Warning
		view.Colour = update.Tone.Colour()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pg.tmpl.Execute(w, view); err != nil {
		fmt.Fprintf(w, "template error: %v", err)
	}
}

func (h *Handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	h.page.render(w, http.StatusOK, nil, nil)
}

// handleFormPredict runs the predict action and re-renders the form with the
// submitted values and the result region filled in.
func (h *Handlers) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		update := service.DisplayUpdate{Text: "Error: " + err.Error(), Tone: service.ToneError}
		h.page.render(w, http.StatusBadRequest, nil, &update)
		return
	}

	values := make(map[string]string, ml.FeatureCount)
	for _, name := range ml.FeatureNames() {
		if _, ok := r.PostForm[name]; ok {
			values[name] = r.PostForm.Get(name)
		}
	}

	update := h.svc.OnPredictRequested(r.Context(), values)
	status := http.StatusOK
	if update.Outcome == nil {
		status = http.StatusInternalServerError
		if service.IsInputError(update.Err) {
			status = http.StatusUnprocessableEntity
		}
	}
	h.page.render(w, status, values, &update)
}

const formTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: Arial, sans-serif; min-height: 100vh;
  {{- if .HasBackground}} background: url('/static/background') center / cover no-repeat;{{else}} background: lightblue;{{end}} }
.header { text-align: center; padding-top: 10px; }
.header img { width: 80px; height: 80px; }
.header h1 { font-size: 28px; margin: 8px 0; }
.glass { background: #ffffff; width: 650px; margin: 0 auto; padding: 10px 20px 20px; }
.grid { display: grid; grid-template-columns: auto auto auto auto; gap: 8px 16px; align-items: center; }
.grid label { font-size: 14px; }
.grid input { width: 140px; background: #f0f0f0; border: 1px solid lightblue; }
button { display: block; margin: 20px auto; font-size: 18px; background: darkblue; color: white; width: 300px; padding: 6px; }
.result { text-align: center; font-size: 20px; font-weight: bold; }
.warning { text-align: center; color: orange; }
</style>
</head>
<body>
<div class="header">
{{- if .HasLogo}}<img src="/static/logo" alt="">{{end}}
<h1>Heart Disease Prediction</h1>
</div>
<div class="glass">
<form method="post" action="/predict">
<div class="grid">
{{- range .Fields}}
<label for="{{.Name}}">{{.Label}}</label>
<input id="{{.Name}}" name="{{.Name}}" value="{{.Value}}" inputmode="decimal">
{{- end}}
</div>
<button type="submit">Predict Heart Disease</button>
</form>
{{- if .ResultLines}}
<div class="result" id="result" style="color: {{.Colour}}">
{{- range .ResultLines}}<div>{{.}}</div>{{end}}
</div>
{{- end}}
{{- if .Warning}}
<div class="warning" id="warning">{{.Warning}}</div>
{{- end}}
</div>
</body>
</html>
`
