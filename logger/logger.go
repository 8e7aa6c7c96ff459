/*
 * Copyright 2023 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
)

// LoggerConfig selects the optional second sink written next to stdout.
type LoggerConfig struct {
	LogLevel       string
	LogMethod      string
	LogFile        LogFile
	VectorEndpoint string
}

type LogFile struct {
	Path       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

type lumberjackSink struct {
	*lumberjack.Logger
}

func (lumberjackSink) Sync() error {
	return nil
}

func Initialize(svc, hostname string, cfg LoggerConfig) error {
	atomicLevel.SetLevel(parseLevel(cfg.LogLevel))

	var extra zapcore.WriteSyncer
	switch cfg.LogMethod {
	case "file":
		extra = lumberjackSink{&lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogFile.Path, svc+".log"),
			MaxSize:    cfg.LogFile.MaxSize, // megabytes
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAge, // days
		}}
	case "vector":
		u, err := url.Parse(cfg.VectorEndpoint)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid vector endpoint %q", cfg.VectorEndpoint)
		}
		extra = newVectorSink(u)
	case "":
	default:
		return fmt.Errorf("unsupported log method %q", cfg.LogMethod)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(ProdEncoderConf()), os.Stdout, atomicLevel),
	}
	if extra != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(ProdEncoderConf()), extra, atomicLevel))
	}

	// fields go on the tee so every sink carries them
	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(),
		zap.Fields(
			zap.String("app", svc),
			zap.String("host", hostname),
		))

	zap.ReplaceGlobals(logger)
	return nil
}

func Flush() {
	if logger != nil {
		logger.Sync()
	}
}

func SetLevel(l string) {
	atomicLevel.SetLevel(parseLevel(l))
}

func GetLevel() string {
	return atomicLevel.Level().String()
}

func parseLevel(l string) zapcore.Level {
	switch l {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func ProdEncoderConf() zapcore.EncoderConfig {
	encConf := zap.NewProductionEncoderConfig()
	encConf.EncodeTime = zapcore.RFC3339TimeEncoder

	return encConf
}

func Verbosity(w http.ResponseWriter, r *http.Request) {
	log := zap.L()
	level := GetLevel()
	log.Debug("current logging level", zap.String("level", level))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "{\"verbosity\": \"%s\"}", level)
}

func SetVerbosity(w http.ResponseWriter, r *http.Request) {
	log := zap.L()

	level := r.URL.Query().Get("v")
	if level == "" {
		http.Error(w, "'v' parameter is not set", http.StatusBadRequest)
		return
	}

	SetLevel(level)

	log.Info("updating logging level", zap.String("level", GetLevel()))

	w.WriteHeader(http.StatusNoContent)
}
