package pipeline

import (
	"encoding/json"
	"html"
	"html/template"
	"io"
	"strings"

	"geo-cluster-pipeline/internal/model"
)

var tileProviders = map[string]struct{ URL, Attribution string }{
	"cartodb positron": {
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
	},
	"openstreetmap": {
		URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
	},
}

func tileLayer(name string) (string, string) {
	if p, ok := tileProviders[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p.URL, p.Attribution
	}
	if strings.Contains(name, "{z}") {
		return name, ""
	}
	p := tileProviders["openstreetmap"]
	return p.URL, p.Attribution
}

type mapPage struct {
	Title       string
	TileURL     string
	Attribution template.HTML
	Lat, Lon    float64
	Zoom        int
	HasBounds   bool
	Bounds      [2][2]float64 // [[south, west], [north, east]]
	Layer       template.JS
	Tooltip     template.JS
	Popup       template.JS
	Labels      []model.MapLabel
	Legend      []model.LegendEntry
	Message     string
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { width: 100%; height: 100%; margin: 0; padding: 0; }
.region-label { font-size: 9px; font-weight: bold; color: black; white-space: nowrap;
  text-shadow: -1px -1px 0 white, 1px -1px 0 white, -1px 1px 0 white, 1px 1px 0 white; }
.legend { position: fixed; bottom: 20px; left: 20px; width: 160px; background: white;
  border: 1px solid grey; z-index: 9999; font-size: 12px; padding: 8px; border-radius: 5px; }
.legend i { width: 15px; height: 15px; display: inline-block; margin-right: 5px; border: 1px solid #000; }
.defect { position: fixed; top: 10px; left: 50px; z-index: 1000; background: white;
  padding: 10px; border: 1px solid gray; }
</style>
</head>
<body>
<div id="map"></div>
{{if .Message}}<div class="defect">{{.Message}}</div>{{end}}
{{if .Legend}}<div class="legend"><b style="font-size: 13px">Cluster legend</b>
{{range .Legend}}<div style="margin: 2px 0"><i style="background: {{.Color}}"></i><span>{{.Label}}</span></div>
{{end}}</div>{{end}}
<script>
function escapeHTML(s) {
  var el = document.createElement('span');
  el.textContent = String(s);
  return el.innerHTML;
}
var map = L.map('map').setView([{{.Lat}}, {{.Lon}}], {{.Zoom}});
L.tileLayer({{.TileURL}}, {attribution: {{.Attribution}}, maxZoom: 19}).addTo(map);
{{if .HasBounds}}map.fitBounds([[{{index .Bounds 0 0}}, {{index .Bounds 0 1}}], [{{index .Bounds 1 0}}, {{index .Bounds 1 1}}]]);{{end}}
{{if .Layer}}
var tooltipFields = {{.Tooltip}};
var popupFields = {{.Popup}};
function fieldsHTML(p, fields) {
  return fields.map(function (f) {
    var v = p[f] === null || p[f] === undefined ? '-' : p[f];
    return '<b>' + escapeHTML(f) + ':</b> ' + escapeHTML(v);
  }).join('<br>');
}
L.geoJSON({{.Layer}}, {
  style: function (f) { return f.properties.style; },
  onEachFeature: function (f, layer) {
    layer.bindTooltip(fieldsHTML(f.properties, tooltipFields));
    layer.bindPopup(fieldsHTML(f.properties, popupFields));
    layer.on('mouseover', function () { layer.setStyle({fillColor: '#ffff00', color: '#ffff00', weight: 3, fillOpacity: 0.7}); });
    layer.on('mouseout', function () { layer.setStyle(f.properties.style); });
  }
}).addTo(map);
{{end}}
{{range .Labels}}L.marker([{{index .At 1}}, {{index .At 0}}], {icon: L.divIcon({className: 'region-label', html: {{.Text}}})}).addTo(map);
{{end}}
</script>
</body>
</html>
`))

// WriteMapHTML renders art as a standalone Leaflet page. Property values and
// labels reach Leaflet's innerHTML only after HTML escaping.
func WriteMapHTML(w io.Writer, art *model.MapArtifact, title string) error {
	url, attribution := tileLayer(art.Tiles)
	labels := make([]model.MapLabel, len(art.Labels))
	for i, l := range art.Labels {
		l.Text = html.EscapeString(l.Text)
		labels[i] = l
	}
	page := mapPage{
		Title:       title,
		TileURL:     url,
		Attribution: template.HTML(attribution),
		Lat:         art.Center[1],
		Lon:         art.Center[0],
		Zoom:        art.Zoom,
		Labels:      labels,
		Legend:      art.Legend,
		Message:     art.Message,
	}
	if art.Bounds != nil {
		page.HasBounds = true
		page.Bounds = [2][2]float64{
			{art.Bounds.Min[1], art.Bounds.Min[0]},
			{art.Bounds.Max[1], art.Bounds.Max[0]},
		}
	}
	if len(art.Layer) > 0 {
		page.Layer = template.JS(art.Layer)
		tooltip, err := json.Marshal(art.TooltipField)
		if err != nil {
			return err
		}
		popup, err := json.Marshal(art.PopupFields)
		if err != nil {
			return err
		}
		page.Tooltip = template.JS(tooltip)
		page.Popup = template.JS(popup)
	}
	return mapTemplate.Execute(w, page)
}
