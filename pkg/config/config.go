package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ptr      reflect.Value //指向配置结构体值,优先级：动态修改值>环境变量>配置文件>默认值
	Modify   any           //动态修改的值
	Env      any           //环境变量中的值
	File     any           //配置文件中的值
	Default  any           //默认值
	name     string        // 小写
	propsMap map[string]*Config
	props    []*Config
	tag      reflect.StructTag
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	patternType  = reflect.TypeOf(BoxPattern{})
)

func (config *Config) Get(key string) (v *Config) {
	if config.propsMap == nil {
		config.propsMap = make(map[string]*Config)
	}
	if v, ok := config.propsMap[key]; ok {
		return v
	} else {
		v = &Config{
			name: key,
		}
		config.propsMap[key] = v
		config.props = append(config.props, v)
		return v
	}
}

func (config *Config) Has(key string) (ok bool) {
	if config.propsMap == nil {
		return false
	}
	_, ok = config.propsMap[strings.ToLower(key)]
	return ok
}

func (config *Config) GetValue() any {
	return config.Ptr.Interface()
}

// Parse 第一步读取配置结构体的默认值和环境变量
func (config *Config) Parse(s any, prefix ...string) {
	var t reflect.Type
	var v reflect.Value
	if vv, ok := s.(reflect.Value); ok {
		t, v = vv.Type(), vv
	} else {
		t, v = reflect.TypeOf(s), reflect.ValueOf(s)
	}
	if t.Kind() == reflect.Pointer {
		t, v = t.Elem(), v.Elem()
	}

	config.Ptr = v
	config.Default = v.Interface()

	if l := len(prefix); l > 0 { // 读取环境变量
		name := strings.ToLower(prefix[l-1])
		if tag := config.tag.Get("default"); tag != "" {
			v.Set(config.assign(name, tag))
			config.Default = v.Interface()
		}
		if envValue := os.Getenv(strings.Join(prefix, "_")); envValue != "" && (t.Kind() != reflect.Struct || t == patternType) {
			v.Set(config.assign(name, envValue))
			config.Env = v.Interface()
		}
	}

	if t.Kind() == reflect.Struct && t != patternType {
		for i, j := 0, t.NumField(); i < j; i++ {
			ft, fv := t.Field(i), v.Field(i)

			if !ft.IsExported() {
				continue
			}
			name := strings.ToLower(ft.Name)
			if tag := ft.Tag.Get("yaml"); tag != "" {
				if tag == "-" {
					continue
				}
				name, _, _ = strings.Cut(tag, ",")
			}
			prop := config.Get(name)

			prop.tag = ft.Tag
			prop.Parse(fv, append(prefix, strings.ToUpper(ft.Name))...)
		}
	}
}

// ParseUserFile 第二步读取用户配置文件，环境变量优先
func (config *Config) ParseUserFile(conf map[string]any) {
	if conf == nil {
		return
	}
	config.File = conf
	for k, v := range conf {
		if !config.Has(k) {
			continue
		}
		if prop := config.Get(strings.ToLower(k)); prop.props != nil {
			if sub, ok := v.(map[string]any); ok {
				prop.ParseUserFile(sub)
			}
		} else {
			fv := prop.assign(prop.name, v)
			prop.File = fv.Interface()
			if prop.Env == nil {
				prop.Ptr.Set(fv)
			}
		}
	}
}

// ParseModifyFile 第三步读取动态修改的配置，与原值相同的项会从 conf 中删除
func (config *Config) ParseModifyFile(conf map[string]any) {
	if conf == nil {
		return
	}
	config.Modify = conf
	for k, v := range conf {
		if !config.Has(k) {
			continue
		}
		if prop := config.Get(strings.ToLower(k)); prop.props != nil {
			if vmap, ok := v.(map[string]any); ok {
				prop.ParseModifyFile(vmap)
				if len(vmap) == 0 {
					delete(conf, k)
				}
			}
		} else {
			mv := prop.assign(prop.name, v)
			v = mv.Interface()
			vwm := prop.valueWithoutModify()
			if equal(vwm, v) {
				delete(conf, k)
				if prop.Modify != nil {
					prop.Modify = nil
					prop.Ptr.Set(reflect.ValueOf(vwm))
				}
				continue
			}
			prop.Modify = v
			prop.Ptr.Set(mv)
		}
	}
	if len(conf) == 0 {
		config.Modify = nil
	}
}

func (config *Config) valueWithoutModify() any {
	if config.Env != nil {
		return config.Env
	}
	if config.File != nil {
		return config.File
	}
	return config.Default
}

func equal(vwm, v any) bool {
	switch ft := reflect.TypeOf(vwm); ft {
	case patternType:
		return vwm.(BoxPattern).String() == v.(BoxPattern).String()
	default:
		switch ft.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return reflect.DeepEqual(vwm, v)
		}
		return vwm == v
	}
}

// GetMap renders the effective values as nested maps keyed by the lowercase field names.
func (config *Config) GetMap() map[string]any {
	m := make(map[string]any)
	for k, v := range config.propsMap {
		if v.props != nil {
			if vv := v.GetMap(); vv != nil {
				m[k] = vv
			}
		} else if v.GetValue() != nil {
			m[k] = v.GetValue()
		}
	}
	if len(m) > 0 {
		return m
	}
	return nil
}

var regexPureNumber = regexp.MustCompile(`^\d+$`)

// assign converts a default tag, environment value or yaml value into the field type.
// Values that do not convert are logged and leave the zero value.
func (config *Config) assign(k string, v any) (target reflect.Value) {
	ft := config.Ptr.Type()

	source := reflect.ValueOf(v)

	switch ft {
	case durationType:
		target = reflect.New(ft).Elem()
		if !source.IsValid() || source.IsZero() {
			target.SetInt(0)
		} else if source.Type() == durationType {
			target.Set(source)
		} else {
			timeStr := fmt.Sprint(v)
			if d, err := time.ParseDuration(timeStr); err == nil && !regexPureNumber.MatchString(timeStr) {
				target.SetInt(int64(d))
			} else {
				slog.Error("invalid duration value please add unit (s,m,h,d)，eg: 100ms, 10s, 4m, 1h", "key", k, "value", v)
			}
		}
	case patternType:
		target = reflect.New(ft).Elem()
		if p, err := CompileBoxPattern(fmt.Sprint(v)); err == nil {
			target.Set(reflect.ValueOf(p))
		} else {
			slog.Error("invalid box pattern", "key", k, "value", v, "error", err)
		}
	default:
		tmpStruct := reflect.StructOf([]reflect.StructField{
			{
				Name: strings.ToUpper(k),
				Type: ft,
			},
		})
		tmpValue := reflect.New(tmpStruct)
		if v != nil {
			var out []byte
			if vv, ok := v.(string); ok {
				out = []byte(fmt.Sprintf("%s: %s", k, vv))
			} else {
				out, _ = yaml.Marshal(map[string]any{k: v})
			}
			if err := yaml.Unmarshal(out, tmpValue.Interface()); err != nil {
				slog.Error("invalid config value", "key", k, "value", v, "error", err)
			}
		}
		target = tmpValue.Elem().Field(0)
	}
	return
}

// Parse fills target from its default tags and applies conf on top.
func Parse(target any, conf map[string]any) {
	var c Config
	c.Parse(target)
	c.ParseModifyFile(conf)
}
