// Package config holds the engine's read-only runtime configuration and
// the logging sink built on top of it, per spec.md section 6 and
// SPEC_FULL.md's ambient-stack expansion. Options are loaded the way
// rclone's fs/config/configstruct loads backend options: a struct with
// `config:"name"` tags populated from a generic string-keyed map, so
// new fields never require touching a hand-written parser.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// ProxyKind mirrors transport/proxylayer.Kind without importing it, so
// config stays a leaf package with no dependency on the transport tree.
type ProxyKind int

const (
	ProxyNone ProxyKind = iota
	ProxySOCKS4
	ProxySOCKS5
	ProxyHTTPConnect
)

// FTPProxyVariant mirrors engine.FTPProxyVariant for the same reason.
type FTPProxyVariant int

const (
	FTPProxyNone FTPProxyVariant = iota
	FTPProxyUserAtHost
	FTPProxySite
	FTPProxyOpen
	FTPProxyCustom
)

// Configuration is the engine's full set of tunables, per spec.md
// section 6. All fields are set once at startup and treated as
// read-only afterward; EngineContext shares one Configuration across
// every Engine instance.
type Configuration struct {
	Timeout               time.Duration `config:"timeout"`
	ReconnectCount        int           `config:"reconnect_count"`
	ReconnectDelay        time.Duration `config:"reconnect_delay"`
	BurstTolerance        int64         `config:"burst_tolerance"`
	DownloadSpeedLimit    int64         `config:"download_speed_limit"`
	UploadSpeedLimit      int64         `config:"upload_speed_limit"`
	ProxyKind             ProxyKind     `config:"proxy_kind"`
	ProxyHost             string        `config:"proxy_host"`
	ProxyPort             int           `config:"proxy_port"`
	ProxyUser             string        `config:"proxy_user"`
	ProxyPassword         string        `config:"proxy_password"`
	FTPProxyVariant       FTPProxyVariant `config:"ftp_proxy_variant"`
	FTPProxyHost          string        `config:"ftp_proxy_host"`
	FTPProxyPort          int           `config:"ftp_proxy_port"`
	FTPProxyUser          string        `config:"ftp_proxy_user"`
	FTPProxyPassword      string        `config:"ftp_proxy_password"`
	LogPath               string        `config:"log_path"`
	LogSizeLimitBytes     int64         `config:"log_size_limit_bytes"`
	DebugLevel            int           `config:"debug_level"`
	LogRawListings        bool          `config:"log_raw_listings"`
	EncodingOverride      string        `config:"encoding_override"`
	StripVMSRevision      bool          `config:"strip_vms_revision"`
	DirectoryCacheTTL     time.Duration `config:"directory_cache_ttl"`
}

// Default returns a Configuration populated with the engine's shipped
// defaults, matching original_source's EngineOptions defaults.
func Default() Configuration {
	return Configuration{
		Timeout:           30 * time.Second,
		ReconnectCount:    3,
		ReconnectDelay:    5 * time.Second,
		BurstTolerance:    4 << 20,
		LogSizeLimitBytes: 10 << 20,
		StripVMSRevision:  true,
		DirectoryCacheTTL: 10 * time.Second,
	}
}

// FromMap populates a Configuration from a generic string-keyed map,
// mirroring rclone's configmap.Mapper + configstruct.Item pattern: the
// struct's `config:"name"` tags are matched case-sensitively against
// map keys, and unset keys keep the struct's existing zero/default
// value rather than erroring.
func FromMap(base Configuration, values map[string]string) (Configuration, error) {
	cfg := base
	v := reflect.ValueOf(&cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("config")
		if tag == "" {
			continue
		}
		raw, ok := values[tag]
		if !ok {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			return cfg, fmt.Errorf("config: field %s: %w", tag, err)
		}
	}
	return cfg, nil
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			f.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}
