package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据配置
//
// WorkbookFile 与 ProjectsRoot 为相对路径时相对于 DataDir；
// DataDir 为相对路径时相对于可执行文件所在目录。
type DataConfig struct {
	DataDir       string `toml:"data_dir"`
	WorkbookFile  string `toml:"workbook_file"`
	SheetName     string `toml:"sheet_name"`
	ProjectsRoot  string `toml:"projects_root"`
	WatchWorkbook bool   `toml:"watch_workbook"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	PortSpecified bool
	ConfigPath    string
	EnvFileLoaded bool
}

// Paths 解析后的绝对路径
type Paths struct {
	DataDir      string
	Workbook     string
	ProjectsRoot string
	LogsDir      string
	DBPath       string
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20262,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir:       "data",
			WorkbookFile:  "科研课题管理总表.xlsx",
			SheetName:     "课题列表",
			ProjectsRoot:  "科研课题管理",
			WatchWorkbook: true,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func exeDirOrDot() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		return "."
	}
	return exeDir
}

// LoadConfigWithInfo 加载可执行文件同目录下的 .env 与 config.toml
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	exeDir := exeDirOrDot()
	loaded := loadEnvFile(filepath.Join(exeDir, ".env"))

	config, info, err := LoadConfigFrom(filepath.Join(exeDir, "config.toml"))
	info.EnvFileLoaded = loaded
	return config, info, err
}

// LoadConfig 从 config.toml 加载配置
// 配置文件位于可执行文件同目录下
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo()
	return config, err
}

// LoadConfigFrom 从指定路径加载配置；文件不存在时使用默认配置，环境变量始终生效
func LoadConfigFrom(configPath string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{ConfigPath: configPath}
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, err
		}
	case errors.Is(err, os.ErrNotExist):
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	if applyEnv(config) {
		info.PortSpecified = true
	}
	return config, info, nil
}

// loadEnvFile .env 不存在时静默跳过；已存在的环境变量不会被覆盖
func loadEnvFile(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return godotenv.Load(path) == nil
}

// applyEnv 环境变量覆盖，返回是否显式设置了端口
func applyEnv(config *AppConfig) bool {
	portSet := false
	if v := os.Getenv("KETIDESK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			config.Server.Port = p
			portSet = true
		}
	}
	if v := os.Getenv("KETIDESK_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}
	if v := os.Getenv("KETIDESK_WORKBOOK"); v != "" {
		config.Data.WorkbookFile = v
	}
	if v := os.Getenv("KETIDESK_SHEET"); v != "" {
		config.Data.SheetName = v
	}
	if v := os.Getenv("KETIDESK_PROJECTS_ROOT"); v != "" {
		config.Data.ProjectsRoot = v
	}
	if v := os.Getenv("KETIDESK_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Data.WatchWorkbook = b
		}
	}
	if v := os.Getenv("KETIDESK_LOG_LEVEL"); v != "" {
		config.Log.Level = strings.ToLower(v)
	}
	return portSet
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig, configPath string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// ResolvePaths 以 baseDir 为基准解析各路径（不创建目录）
func ResolvePaths(config *AppConfig, baseDir string) Paths {
	dataDir := resolve(baseDir, config.Data.DataDir)
	return Paths{
		DataDir:      dataDir,
		Workbook:     resolve(dataDir, config.Data.WorkbookFile),
		ProjectsRoot: resolve(dataDir, config.Data.ProjectsRoot),
		LogsDir:      resolve(dataDir, config.Log.Dir),
		DBPath:       filepath.Join(dataDir, "ketidesk.db"),
	}
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// EnsureDataDir 确保数据目录、课题根目录与日志目录存在
// 数据目录位于可执行文件同目录下
func EnsureDataDir(config *AppConfig) (Paths, error) {
	return EnsureDataDirAt(config, exeDirOrDot())
}

// EnsureDataDirAt 同 EnsureDataDir，以 baseDir 为基准
func EnsureDataDirAt(config *AppConfig, baseDir string) (Paths, error) {
	paths := ResolvePaths(config, baseDir)
	for _, dir := range []string{paths.DataDir, paths.ProjectsRoot, paths.LogsDir, filepath.Dir(paths.Workbook)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
