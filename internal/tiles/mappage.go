package tiles

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type mapPageData struct {
	CenterLng float64
	CenterLat float64
	Zoom      float64
	MinZoom   int
	Color     string
	Opacity   float64
}

// MapPage handles GET /: an interactive MapLibre viewer backed by the tile
// endpoint. Query params override the configured defaults: lng, lat, zoom,
// minzoom, color, opacity.
func (h *Handler) MapPage(c echo.Context) error {
	data := mapPageData{
		CenterLng: floatParam(c, "lng", parseOr(h.opts.MapCenterLng, 5.12)),
		CenterLat: floatParam(c, "lat", parseOr(h.opts.MapCenterLat, 52.09)),
		Zoom:      floatParam(c, "zoom", parseOr(h.opts.MapZoom, 15)),
		MinZoom:   h.opts.MinZoom,
		Color:     stringParam(c, "color", "#3388ff"),
		Opacity:   floatParam(c, "opacity", 0.6),
	}
	if mz := c.QueryParam("minzoom"); mz != "" {
		if v, err := strconv.Atoi(mz); err == nil {
			data.MinZoom = v
		}
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return mapPageTemplate.Execute(c.Response(), data)
}

func floatParam(c echo.Context, name string, fallback float64) float64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func stringParam(c echo.Context, name, fallback string) string {
	if v := c.QueryParam(name); v != "" {
		return v
	}
	return fallback
}

func parseOr(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

var mapPageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Buildings Viewer</title>
    <script src="https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.js"></script>
    <link href="https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.css" rel="stylesheet" />
    <style>
        body { margin: 0; padding: 0; }
        #map { position: absolute; top: 0; bottom: 0; width: 100%; }
    </style>
</head>
<body>
    <div id="map"></div>
    <script>
        const MIN_ZOOM = {{.MinZoom}};

        const map = new maplibregl.Map({
            container: 'map',
            style: {
                version: 8,
                sources: {
                    'osm': {
                        type: 'raster',
                        tiles: ['https://tile.openstreetmap.org/{z}/{x}/{y}.png'],
                        tileSize: 256
                    },
                    'buildings': {
                        type: 'vector',
                        tiles: [window.location.origin + '/tiles/{z}/{x}/{y}.pbf'],
                        minzoom: MIN_ZOOM,
                        maxzoom: 16
                    }
                },
                layers: [
                    {
                        id: 'osm-layer',
                        type: 'raster',
                        source: 'osm'
                    },
                    {
                        id: 'buildings-fill',
                        type: 'fill',
                        source: 'buildings',
                        'source-layer': 'buildings',
                        minzoom: MIN_ZOOM,
                        paint: {
                            'fill-color': '{{.Color}}',
                            'fill-opacity': {{.Opacity}}
                        }
                    },
                    {
                        id: 'buildings-outline',
                        type: 'line',
                        source: 'buildings',
                        'source-layer': 'buildings',
                        minzoom: MIN_ZOOM,
                        paint: {
                            'line-color': '#333',
                            'line-width': 0.5
                        }
                    }
                ]
            },
            center: [{{.CenterLng}}, {{.CenterLat}}],
            zoom: {{.Zoom}}
        });

        map.addControl(new maplibregl.NavigationControl());

        // Report the viewport after load and every pan or zoom so the stats
        // consumer can follow along.
        function updateViewStats() {
            const bounds = map.getBounds();
            fetch('/update-view', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({
                    bounds: {
                        north: bounds.getNorth(),
                        south: bounds.getSouth(),
                        east: bounds.getEast(),
                        west: bounds.getWest()
                    },
                    zoom: map.getZoom()
                })
            });
        }

        map.on('load', updateViewStats);
        map.on('moveend', updateViewStats);

        map.on('click', 'buildings-fill', (e) => {
            const props = e.features[0].properties;
            let html = '<h3>Building</h3>';
            for (const [k, v] of Object.entries(props)) {
                if (v && v !== 'null') html += '<p><b>' + k + ':</b> ' + v + '</p>';
            }
            new maplibregl.Popup().setLngLat(e.lngLat).setHTML(html).addTo(map);
        });

        map.on('mouseenter', 'buildings-fill', () => map.getCanvas().style.cursor = 'pointer');
        map.on('mouseleave', 'buildings-fill', () => map.getCanvas().style.cursor = '');
    </script>
</body>
</html>
`))
