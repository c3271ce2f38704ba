package arcgis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SplitLayerURL splits ".../FeatureServer/0" into the service URL and the
// layer id. Casing of the FeatureServer segment is normalized and any query
// string is dropped.
func SplitLayerURL(layerURL string) (serviceURL string, layerID int, err error) {
	u, err := url.Parse(strings.TrimSpace(layerURL))
	if err != nil {
		return "", 0, fmt.Errorf("parse layer url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", 0, fmt.Errorf("layer url must be http(s): %q", layerURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("not a feature layer url: %q", layerURL)
	}
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || id < 0 {
		return "", 0, fmt.Errorf("layer url must end with a layer id: %q", layerURL)
	}
	if !strings.EqualFold(parts[len(parts)-2], "FeatureServer") {
		return "", 0, fmt.Errorf("layer url must point into a FeatureServer: %q", layerURL)
	}
	parts[len(parts)-2] = "FeatureServer"

	u.Path = "/" + strings.Join(parts[:len(parts)-1], "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), id, nil
}
