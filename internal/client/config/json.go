package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/flagx"
	"github.com/dmitrijs2005/growthvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from a zero value.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	DataDir             *string         `json:"data_dir"`
	LocalQuotaKiB       *int64          `json:"local_quota_kib"`
	ConstrainedImages   *bool           `json:"constrained_images"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c/-config. Without the flag nothing happens. Read or decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.DataDir != nil {
		cfg.DataDir = *jc.DataDir
	}
	if jc.LocalQuotaKiB != nil {
		cfg.LocalQuotaBytes = *jc.LocalQuotaKiB * 1024
	}
	if jc.ConstrainedImages != nil {
		cfg.ConstrainedImages = *jc.ConstrainedImages
	}
}
