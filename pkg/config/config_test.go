package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writer struct {
	TimeScale     uint32        `default:"1000"`
	Brands        []string      `default:"[isom, mp41]"`
	ChunkDuration time.Duration `default:"1s"`
	Bitrate       bool          `default:"true"`
	Skip          BoxPattern
	Output        struct {
		Path string `default:"out.mp4"`
	}
	Hook func() `yaml:"-"`
}

// TestDefault 测试 default 标签和环境变量
func TestDefault(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		t.Setenv("MP4_TIMESCALE", "600")
		var w writer
		var conf Config
		conf.Parse(&w, "MP4")
		assert.EqualValues(t, 600, w.TimeScale)
		assert.Equal(t, []string{"isom", "mp41"}, w.Brands)
		assert.Equal(t, time.Second, w.ChunkDuration)
		assert.True(t, w.Bitrate)
		assert.False(t, w.Skip.Valid())
		assert.Equal(t, "out.mp4", w.Output.Path)
		assert.False(t, conf.Has("hook"))
	})
}

// TestUserFile 测试配置文件覆盖默认值，环境变量优先于配置文件
func TestUserFile(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		t.Setenv("MP4_BITRATE", "false")
		var w writer
		var conf Config
		conf.Parse(&w, "MP4")
		conf.ParseUserFile(map[string]any{
			"chunkduration": "500ms",
			"bitrate":       true,
			"skip":          "^(free|skip)$",
			"output":        map[string]any{"path": "a.mp4"},
			"unknown":       1,
		})
		assert.Equal(t, 500*time.Millisecond, w.ChunkDuration)
		assert.False(t, w.Bitrate)
		require.True(t, w.Skip.Valid())
		assert.True(t, w.Skip.MatchString("free"))
		assert.False(t, w.Skip.MatchString("moov"))
		assert.False(t, w.Skip.MatchString("freeze"))
		assert.Equal(t, "a.mp4", w.Output.Path)
		m := conf.GetMap()
		assert.Equal(t, "a.mp4", m["output"].(map[string]any)["path"])
	})
}

// TestModify 测试动态修改配置，比较值是否修改，修改后是否有Modify属性
func TestModify(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		var w writer
		var conf Config
		conf.Parse(&w, "MP4")
		conf.ParseModifyFile(map[string]any{
			"timescale": 1000,
		})
		assert.Nil(t, conf.Modify)
		conf.ParseModifyFile(map[string]any{
			"timescale": 90000,
		})
		assert.NotNil(t, conf.Modify)
		assert.EqualValues(t, 90000, w.TimeScale)
	})
}

func TestInvalidDuration(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		var w writer
		var conf Config
		conf.Parse(&w, "MP4")
		conf.ParseUserFile(map[string]any{"chunkduration": "100"})
		assert.Zero(t, w.ChunkDuration)
	})
}

func TestInvalidBoxPattern(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		var w writer
		var conf Config
		conf.Parse(&w, "MP4")
		conf.ParseUserFile(map[string]any{"skip": "mdat1"})
		assert.False(t, w.Skip.Valid())
	})
}
