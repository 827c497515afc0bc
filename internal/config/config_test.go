package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func setKeys(t *testing.T) {
	t.Setenv("SEMPLAN_COOKIE_HASH_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("h", 32))))
	t.Setenv("SEMPLAN_COOKIE_BLOCK_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("b", 32))))
}

func TestFromEnv(t *testing.T) {
	Convey("Given only the cookie keys in the environment", t, func() {
		setKeys(t)

		cfg, err := FromEnv()

		Convey("Then defaults fill everything else", func() {
			So(err, ShouldBeNil)
			So(cfg.ListenAddr, ShouldEqual, ":8080")
			So(cfg.Timezone, ShouldEqual, "Europe/Berlin")
			So(cfg.CorrelationProperty, ShouldEqual, "X-RAPLA-ID")
			So(cfg.MaxUploadBytes, ShouldEqual, 10<<20)
			So(cfg.CookieHashKey, ShouldHaveLength, 32)
			So(cfg.CookieBlockKey, ShouldHaveLength, 32)
		})
	})
}

func TestFromEnvOverrides(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		setKeys(t)
		t.Setenv("SEMPLAN_LISTEN_ADDR", ":9999")
		t.Setenv("SEMPLAN_MAX_UPLOAD_BYTES", "2048")
		t.Setenv("SEMPLAN_CORRELATION_PROPERTY", "X-MODULE-ID")

		cfg, err := FromEnv()

		Convey("Then they win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.ListenAddr, ShouldEqual, ":9999")
			So(cfg.MaxUploadBytes, ShouldEqual, 2048)
			So(cfg.CorrelationProperty, ShouldEqual, "X-MODULE-ID")
		})
	})
}

func TestFromEnvFile(t *testing.T) {
	Convey("Given a YAML config file and an env override", t, func() {
		setKeys(t)
		dir := t.TempDir()
		path := filepath.Join(dir, "semesterplan.yaml")
		yml := "listen_addr: \":7070\"\ntimezone: Europe/Vienna\nlog_level: debug\n"
		So(os.WriteFile(path, []byte(yml), 0o600), ShouldBeNil)
		t.Setenv("SEMPLAN_CONFIG", path)
		t.Setenv("SEMPLAN_LOG_LEVEL", "warn")

		cfg, err := FromEnv()

		Convey("Then the file is applied beneath the environment", func() {
			So(err, ShouldBeNil)
			So(cfg.ListenAddr, ShouldEqual, ":7070")
			So(cfg.Timezone, ShouldEqual, "Europe/Vienna")
			So(cfg.LogLevel, ShouldEqual, "warn")
		})
	})
}

func TestFromEnvInvalidKeys(t *testing.T) {
	Convey("Given no cookie keys", t, func() {
		t.Setenv("SEMPLAN_COOKIE_HASH_KEY", "")
		t.Setenv("SEMPLAN_COOKIE_BLOCK_KEY", "")

		_, err := FromEnv()

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a block key of the wrong size", t, func() {
		setKeys(t)
		t.Setenv("SEMPLAN_COOKIE_BLOCK_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

		_, err := FromEnv()

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "cookie_block_key")
		})
	})
}

func TestDecodeB64FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	want := []byte("0123456789abcdef")
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(want)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := decodeB64(path)
	if err != nil {
		t.Fatalf("decodeB64: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLoadWithoutSecrets(t *testing.T) {
	Convey("Given no cookie keys in the environment", t, func() {
		t.Setenv("SEMPLAN_COOKIE_HASH_KEY", "")
		t.Setenv("SEMPLAN_COOKIE_BLOCK_KEY", "")
		t.Setenv("SEMPLAN_TIMEZONE", "Europe/Vienna")

		Convey("Then Load still returns the parsing settings", func() {
			cfg, err := Load()
			So(err, ShouldBeNil)
			So(cfg.Timezone, ShouldEqual, "Europe/Vienna")
			So(cfg.CorrelationProperty, ShouldEqual, "X-RAPLA-ID")
			So(cfg.CookieHashKey, ShouldBeEmpty)
		})

		Convey("Then FromEnv refuses to start", func() {
			_, err := FromEnv()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SEMPLAN_COOKIE_HASH_KEY")
		})
	})
}
