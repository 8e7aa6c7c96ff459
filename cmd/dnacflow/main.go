/*
 * Copyright 2024 Comcast Cable Communications Management, LLC
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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/comcast/dnacflow/buildinfo"
	"github.com/comcast/dnacflow/common"
	"github.com/comcast/dnacflow/config"
	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/http/handlers"
	"github.com/comcast/dnacflow/intent"
	"github.com/comcast/dnacflow/intent/eventcount"
	"github.com/comcast/dnacflow/intent/profiling"
	"github.com/comcast/dnacflow/intent/sdaauth"
	"github.com/comcast/dnacflow/intent/site"
	"github.com/comcast/dnacflow/intent/swim"
	"github.com/comcast/dnacflow/journal"
	"github.com/comcast/dnacflow/logger"
	"github.com/comcast/dnacflow/metrics"
	"github.com/comcast/dnacflow/middleware/logging"
	"github.com/comcast/dnacflow/middleware/muxprom"
	"github.com/comcast/dnacflow/playbook"
	cm_vault "github.com/comcast/dnacflow/vault"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"
)

const app = "dnacflow"

var (
	a                  = kingpin.New(app, "Catalyst Center intent playbooks from the command line or over http")
	host               = a.Flag("dnac.host", "controller hostname or base url").Default("").Envar("DNAC_HOST").String()
	port               = a.Flag("dnac.port", "controller port").Default(config.DefaultPort).Envar("DNAC_PORT").String()
	scheme             = a.Flag("dnac.scheme", "controller scheme").Default("https").Envar("DNAC_SCHEME").String()
	username           = a.Flag("dnac.user", "controller static username").Default(config.DefaultUser).Envar("DNAC_USERNAME").String()
	password           = a.Flag("dnac.password", "controller static password").Default("").Envar("DNAC_PASSWORD").String()
	version            = a.Flag("dnac.version", "controller release, selects the api flavour").Default(config.DefaultVersion).Envar("DNAC_VERSION").String()
	insecureSkipVerify = a.Flag("insecure-skip-verify", "Skip TLS verification").Default("false").Envar("INSECURE_SKIP_VERIFY").Bool()
	timeout            = a.Flag("dnac.timeout", "timeout of a single controller request").Default("30s").Envar("DNAC_TIMEOUT").Duration()
	taskTimeout        = a.Flag("dnac.task-timeout", "how long to wait for an asynchronous task").Default(config.DefaultTaskTimeout.String()).Envar("DNAC_TASK_TIMEOUT").Duration()
	pollInterval       = a.Flag("dnac.poll-interval", "first interval between task status polls").Default(config.DefaultPollInterval.String()).Envar("DNAC_POLL_INTERVAL").Duration()
	proxy              = a.Flag("dnac.proxy", "http proxy used to reach the controller, defaults to HTTP(S)_PROXY").Default("").Envar("DNAC_PROXY").String()
	rateLimit          = a.Flag("dnac.rate-limit", "requests per second sent to the controller, 0 disables limiting").Default("0").Envar("DNAC_RATE_LIMIT").Float64()
	debug              = a.Flag("dnac.debug", "log every retried controller request").Default("false").Envar("DNAC_DEBUG").Bool()
	logLevel           = a.Flag("log.level", "log level verbosity").PlaceHolder("[debug|info|warn|error]").Default("info").Envar("LOG_LEVEL").String()
	logMethod          = a.Flag("log.method", "alternative method for logging in addition to stdout").PlaceHolder("[file|vector]").Default("").Envar("LOG_METHOD").String()
	logFilePath        = a.Flag("log.file-path", "directory path where log files are written if log-method is file").Default("/var/log/dnacflow").Envar("LOG_FILE_PATH").String()
	logFileMaxSize     = a.Flag("log.file-max-size", "max file size in megabytes if log-method is file").Default("256").Envar("LOG_FILE_MAX_SIZE").String()
	logFileMaxBackups  = a.Flag("log.file-max-backups", "max file backups before they are rotated if log-method is file").Default("1").Envar("LOG_FILE_MAX_BACKUPS").String()
	logFileMaxAge      = a.Flag("log.file-max-age", "max file age in days before they are rotated if log-method is file").Default("1").Envar("LOG_FILE_MAX_AGE").String()
	vectorEndpoint     = a.Flag("vector.endpoint", "vector endpoint to send structured json logs to").Default("http://0.0.0.0:4444").Envar("VECTOR_ENDPOINT").String()
	vaultAddr          = a.Flag("vault.addr", "Vault instance address to get controller credentials from").Default("https://vault.com").Envar("VAULT_ADDRESS").String()
	vaultRoleId        = a.Flag("vault.role-id", "Vault Role ID for AppRole").Default("").Envar("VAULT_ROLE_ID").String()
	vaultSecretId      = a.Flag("vault.secret-id", "Vault Secret ID for AppRole").Default("").Envar("VAULT_SECRET_ID").String()
	vaultMountPath     = a.Flag("vault.mount-path", `secrets engine mount, "kv2" selects the versioned engine`).Default("kv2").Envar("VAULT_MOUNT_PATH").String()
	vaultPath          = a.Flag("vault.path", "path of the controller secrets below the mount").Default("").Envar("VAULT_PATH").String()
	vaultUserField     = a.Flag("vault.user-field", "secret field holding the username").Default("user").Envar("VAULT_USER_FIELD").String()
	vaultPassField     = a.Flag("vault.password-field", "secret field holding the password").Default("password").Envar("VAULT_PASSWORD_FIELD").String()
	journalPath        = a.Flag("journal.path", `run journal file, ":memory:" keeps it in memory`).Default(journal.Memory).Envar("JOURNAL_PATH").String()

	runCmd       = a.Command("run", "run playbooks and print their reports")
	runPlaybooks = runCmd.Arg("playbook", "playbook yaml file").Required().ExistingFiles()

	serveCmd  = a.Command("serve", "serve playbook runs over http")
	servePort = serveCmd.Flag("port", "http listen port").Default("10024").Envar("DNACFLOW_PORT").String()

	versionCmd   = a.Command("version", "print build information")
	versionShort = versionCmd.Flag("short", "print the version only").Bool()

	log *zap.Logger
)

var wg = sync.WaitGroup{}

func registry() *intent.Registry {
	return intent.NewRegistry(
		site.New(),
		swim.New(),
		profiling.New(),
		eventcount.New(),
		sdaauth.New(),
	)
}

func main() {
	a.HelpFlag.Short('h')

	cmd, err := a.Parse(os.Args[1:])
	if err != nil {
		panic(fmt.Errorf("error parsing argument flags - %s", err.Error()))
	}

	if cmd == versionCmd.FullCommand() {
		if *versionShort {
			fmt.Println(buildinfo.Short())
			return
		}
		buildinfo.Print(os.Stdout)
		return
	}

	initLogger()
	defer logger.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config.NewConfig(&config.Config{
		Scheme:             *scheme,
		Host:               *host,
		Port:               *port,
		User:               *username,
		Pass:               *password,
		Version:            *version,
		InsecureSkipVerify: *insecureSkipVerify,
		Timeout:            *timeout,
		TaskTimeout:        *taskTimeout,
		PollInterval:       *pollInterval,
		RateLimit:          *rateLimit,
		Debug:              *debug,
	})

	metrics.Register(prometheus.DefaultRegisterer)

	jrnl, err := journal.Open(*journalPath)
	if err != nil {
		log.Fatal("failed opening run journal", zap.Error(err), zap.String("journal_path", *journalPath))
	}
	defer jrnl.Close()

	runner := &playbook.Runner{
		Registry: registry(),
		Journal:  jrnl,
		Defaults: defaults(ctx),
		Proxy:    *proxy,
	}

	switch cmd {
	case runCmd.FullCommand():
		if failed := runFiles(ctx, runner, *runPlaybooks); failed {
			cancel()
			wg.Wait()
			jrnl.Close()
			logger.Flush()
			os.Exit(2)
		}
	case serveCmd.FullCommand():
		serve(ctx, cancel, runner, jrnl)
	}

	cancel()
	wg.Wait()
}

func initLogger() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}

	// validate logFilePath exists and is a directory
	if *logMethod == "file" {
		fd, err := os.Stat(*logFilePath)
		if os.IsNotExist(err) {
			panic(err)
		}
		if !fd.IsDir() {
			panic(fmt.Errorf("%s is not a directory", *logFilePath))
		}
	}

	logfileMaxSize, err := strconv.Atoi(*logFileMaxSize)
	if err != nil {
		panic(fmt.Errorf("error converting arg --log.file-max-size to int - %s", err.Error()))
	}

	logfileMaxBackups, err := strconv.Atoi(*logFileMaxBackups)
	if err != nil {
		panic(fmt.Errorf("error converting arg --log.file-max-backups to int - %s", err.Error()))
	}

	logfileMaxAge, err := strconv.Atoi(*logFileMaxAge)
	if err != nil {
		panic(fmt.Errorf("error converting arg --log.file-max-age to int - %s", err.Error()))
	}

	logConfig := logger.LoggerConfig{
		LogLevel:  *logLevel,
		LogMethod: *logMethod,
		LogFile: logger.LogFile{
			Path:       *logFilePath,
			MaxSize:    logfileMaxSize,
			MaxBackups: logfileMaxBackups,
			MaxAge:     logfileMaxAge,
		},
		VectorEndpoint: *vectorEndpoint,
	}

	err = logger.Initialize(app, hostname, logConfig)
	if err != nil {
		panic(fmt.Errorf("error initializing logger - log_method=%s vector_endpoint=%s log_file_path=%s - err=%s",
			*logMethod, *vectorEndpoint, *logFilePath, err.Error()))
	}

	log = zap.L()
	log.Info("successfully initialized logger", zap.String("log_method", *logMethod), zap.String("version", buildinfo.Short()))
}

// defaults turns the process configuration into client options. When vault
// approle credentials are given, logins are read from vault per controller
// and the token is renewed in the background until ctx is done.
func defaults(ctx context.Context) dnac.Options {
	c := config.GetConfig()
	static := &common.Credential{User: c.User, Pass: c.Pass}

	opts := dnac.Options{
		Host:               c.Host,
		Port:               c.Port,
		Scheme:             c.Scheme,
		Username:           c.User,
		Password:           c.Pass,
		Version:            c.Version,
		InsecureSkipVerify: c.InsecureSkipVerify,
		Debug:              c.Debug,
		Timeout:            c.Timeout,
		RateLimit:          c.RateLimit,
		TaskTimeout:        c.TaskTimeout,
		PollInterval:       c.PollInterval,
	}

	if *vaultRoleId == "" || *vaultSecretId == "" {
		return opts
	}

	vault, err := cm_vault.NewVaultAppRoleClient(ctx, cm_vault.Parameters{
		Address:         *vaultAddr,
		ApproleRoleID:   *vaultRoleId,
		ApproleSecretID: *vaultSecretId,
	})
	if err != nil {
		log.Error("failed initializing vault client", zap.Error(err),
			zap.String("vault_address", *vaultAddr),
			zap.String("vault_role_id", *vaultRoleId))
		return opts
	}

	wg.Add(1)
	go vault.RenewToken(ctx, &wg)

	opts.Credentials = common.NewControllerCredentials(vault, &cm_vault.SecretProperties{
		MountPath:     *vaultMountPath,
		Path:          *vaultPath,
		UserField:     *vaultUserField,
		PasswordField: *vaultPassField,
	}, static)
	return opts
}

// runFiles runs each playbook in turn and prints its report. It reports
// whether any run failed.
func runFiles(ctx context.Context, runner *playbook.Runner, files []string) bool {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := false
	for _, f := range files {
		pb, err := playbook.LoadFile(f)
		if err != nil {
			log.Error("failed loading playbook", zap.String("playbook", f), zap.Error(err))
			failed = true
			continue
		}

		report, err := runner.Run(ctx, pb)
		if err != nil {
			log.Error("failed running playbook", zap.String("playbook", f), zap.Error(err))
			failed = true
			continue
		}
		enc.Encode(report)
		failed = failed || report.Failed
	}
	return failed
}

func serve(ctx context.Context, cancel context.CancelFunc, runner *playbook.Runner, jrnl *journal.Journal) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buildinfo.Info)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	h := &handlers.Handler{Runner: runner, Journal: jrnl}
	h.Register(mux)

	tmplIndex := template.Must(template.New("index").Parse(indexTmpl))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		runs, err := jrnl.Runs()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data := indexAppData{BuildInfo: buildinfo.Info, Modules: runner.Registry.Names(), Runs: runs}
		if err := tmplIndex.Execute(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("GET /verbosity", logger.Verbosity)
	mux.HandleFunc("PUT /verbosity", logger.SetVerbosity)

	instrumentation := muxprom.NewDefaultInstrumentation()
	wrappedmux := logging.LoggingHandler(instrumentation.Middleware(mux))

	srv := &http.Server{
		Addr:    ":" + *servePort,
		Handler: wrappedmux,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	listener, err := net.Listen("tcp4", ":"+*servePort)
	if err != nil {
		log.Error("starting "+app+" service failed", zap.Error(err))
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("http server received an error", zap.Error(err))
			signals <- syscall.SIGTERM
		}
	}()

	log.Info("started "+app+" service", zap.String("port", *servePort))

	s := <-signals
	log.Info(s.String() + " signal caught, stopping app")
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	// stops the vault token renewal
	cancel()
}
