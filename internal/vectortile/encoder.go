// Package vectortile encodes building polygons into Mapbox Vector Tiles.
package vectortile

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"buildings-viewer/internal/geo"
)

// DefaultLayerName is the source-layer name the map style references.
const DefaultLayerName = "buildings"

// Encode projects the buildings into the tile's local 4096-unit grid, clips
// them to the buffered tile extent and marshals the result as a single-layer
// MVT payload. Features whose exact geometry misses the tile (the bbox
// prefilter overlapped but the polygon did not) are dropped, as are polygons
// that collapse to zero area after quantization. Empty input produces a
// valid, empty tile.
//
// Output is deterministic: the same features and tile always marshal to
// identical bytes.
func Encode(buildings []geo.Building, tile maptile.Tile, layerName string) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, b := range buildings {
		if b.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(b.Geometry)
		f.Properties["id"] = b.ID
		if b.Name != nil {
			f.Properties["name"] = *b.Name
		}
		if b.Height != nil {
			f.Properties["height"] = *b.Height
		}
		if b.Class != nil {
			f.Properties["class"] = *b.Class
		}
		fc.Append(f)
	}

	layer := mvt.NewLayer(layerName, fc)
	layer.ProjectToTile(tile)

	layers := mvt.Layers{layer}
	layers.Clip(mvt.MapboxGLDefaultExtentBound)
	layers.RemoveEmpty(1.0, 1.0)

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("marshal tile %v: %w", tile, err)
	}
	return data, nil
}
