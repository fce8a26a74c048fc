package conf

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/zeptools/gw-typst/backends/builtin"
	"github.com/zeptools/gw-typst/backends/typstcli"
	"github.com/zeptools/gw-typst/db"
	"github.com/zeptools/gw-typst/db/kvdb"
	"github.com/zeptools/gw-typst/db/kvdb/impls/redis"
	"github.com/zeptools/gw-typst/db/sqldb"
	_ "github.com/zeptools/gw-typst/db/sqldb/impls/mysql" // registers "mysql"
	_ "github.com/zeptools/gw-typst/db/sqldb/impls/pgsql" // registers "pgsql"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/render"
	"github.com/zeptools/gw-typst/routing"
	"github.com/zeptools/gw-typst/sec"
	"github.com/zeptools/gw-typst/svc"
	"github.com/zeptools/gw-typst/templates"
	"github.com/zeptools/gw-typst/throttle"
	"github.com/zeptools/gw-typst/uds"
	"github.com/zeptools/gw-typst/web"
	"github.com/zeptools/gw-typst/world"
)

const (
	DefaultListen       = "127.0.0.1:8000"
	renderThrottleGroup = "render"
	udsCommandTimeout   = 10 * time.Second
)

// Core - process config and the services built from it
type Core struct {
	AppName   string        `json:"app_name"`
	Listen    string        `json:"listen"`     // HTTP Server Listen IP:PORT Address
	UDSSocket string        `json:"uds_socket"` // operator socket, disabled if empty
	FilesRoot string        `json:"files_root"` // the only directory templates may read files from
	Fonts     FontsConf     `json:"fonts"`
	Templates TemplatesConf `json:"templates"`
	Render    RenderConf    `json:"render"`
	Throttle  ThrottleConf  `json:"throttle"`
	Auth      AuthConf      `json:"auth"`

	AppRoot             string                        `json:"-"` // Filled from compiled paths or flags
	RootCtx             context.Context               `json:"-"` // Global Context with RootCancel
	RootCancel          context.CancelFunc            `json:"-"` // CancelFunc for RootCtx
	UDSService          *uds.Service                  `json:"-"` // PrepareUDSService
	WebService          *web.Service                  `json:"-"` // PrepareWebService
	ThrottleBucketStore *throttle.BucketStore[string] `json:"-"` // PrepareThrottleBucketStore
	KVDBConf            kvdb.Conf                     `json:"-"` // loadKVDBConf
	BackendKVDBClient   kvdb.Client                   `json:"-"` // prepareKVDBClient
	SQLDBConfs          map[string]*sqldb.Conf        `json:"-"` // loadSQLDBConfs
	BackendSQLDBClients map[string]sqldb.Client       `json:"-"` // prepareSQLDBClients
	FontRegistry        *fonts.Registry               `json:"-"` // PrepareFonts
	Backend             world.Compiler                `json:"-"` // PrepareBackend
	TemplateStore       templates.Store               `json:"-"` // PrepareTemplateStore
	BearerAuth          *sec.BearerAuth               `json:"-"` // PrepareAuth
	RenderHandler       *render.Handler               `json:"-"` // Router
	extraWrappers       []routing.HandlerWrapper
	commands            map[string]uds.CmdHnd
	services            []svc.Service // Services to Manage
	done                chan error
}

// BaseInit - 1st step for initialization
// 1. set AppRoot
// 2. load config/.core.json file
// 3. Start ShutdownSignalListener
func (c *Core) BaseInit(appRoot string, rootCtx context.Context, rootCancel context.CancelFunc) error {
	if err := c.LoadConf(appRoot); err != nil {
		return err
	}
	c.RootCtx = rootCtx
	c.RootCancel = rootCancel
	c.startShutdownSignalListener()
	return nil
}

// LoadConf reads config/.core.json under appRoot and resolves relative
// paths against appRoot.
func (c *Core) LoadConf(appRoot string) error {
	c.AppRoot = appRoot
	envFilePath := filepath.Join(appRoot, "config", ".core.json")
	envBytes, err := os.ReadFile(envFilePath) // ([]byte, error)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(envBytes, c); err != nil {
		return fmt.Errorf("%s: %w", envFilePath, err)
	}
	c.applyDefaults()
	return nil
}

func (c *Core) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "typst"
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Templates.Type == "" {
		c.Templates.Type = TemplatesFS
	}
	if c.Templates.Dir == "" {
		c.Templates.Dir = "templates"
	}
	if c.Render.Backend == "" {
		c.Render.Backend = BackendBuiltin
	}
	c.FilesRoot = c.path(c.FilesRoot)
	c.UDSSocket = c.path(c.UDSSocket)
	c.Templates.Dir = c.path(c.Templates.Dir)
	c.Auth.PublicKeyPath = c.path(c.Auth.PublicKeyPath)
	for i, p := range c.Fonts.Paths {
		c.Fonts.Paths[i] = c.path(p)
	}
}

// path resolves p against AppRoot. Empty stays empty.
func (c *Core) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.AppRoot, p)
}

func (c *Core) AddService(s svc.Service) {
	log.Printf("[INFO] adding service: %s", s.Name())
	c.services = append(c.services, s)
	log.Printf("[INFO] total services: %d", len(c.services))
}

func (c *Core) StartServices() error {
	c.done = make(chan error, len(c.services))
	for _, s := range c.services {
		err := s.Start()
		if err != nil {
			return err
		}
		go func(s svc.Service) {
			err := <-s.Done()
			c.done <- err
		}(s) // pass the loop var to the param. otherwise, they are captured inside goroutine lazily
	}
	return nil
}

func (c *Core) WaitServicesDone() error {
	for i := 0; i < len(c.services); i++ {
		if err := <-c.done; err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) StopServices() {
	for _, s := range c.services {
		s.Stop()
	}
}

var once sync.Once

func (c *Core) startShutdownSignalListener() {
	once.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			log.Printf("[INFO] got signal [%s]. shutting down app [%s] ...", sig, c.AppName)
			c.RootCancel() // broadcast to all child services via Context.Done()
		}()
	})
	log.Printf("[INFO][CORE] shutdown signal listener started")
}

// PrepareFonts builds the shared font catalog once. It is only rebuilt by
// the fonts-reload operator command.
func (c *Core) PrepareFonts() {
	c.FontRegistry = fonts.NewRegistry(fonts.Options{
		Paths:        c.Fonts.Paths,
		IgnoreSystem: c.Fonts.IgnoreSystem,
		Embedded:     true,
	})
	c.FontRegistry.Catalog()
}

func (c *Core) PrepareBackend() error {
	switch c.Render.Backend {
	case BackendBuiltin:
		c.Backend = builtin.New()
	case BackendTypst:
		bin := c.Render.TypstBin
		if bin == "" {
			bin = typstcli.DefaultBinary
		}
		b := typstcli.New(bin)
		if !b.Available() {
			return fmt.Errorf("typst backend: executable %q not found", bin)
		}
		c.Backend = b
	default:
		return fmt.Errorf("unsupported render backend %q", c.Render.Backend)
	}
	log.Printf("[INFO][CORE] render backend: %s", c.Backend.Name())
	return nil
}

func (c *Core) PrepareTemplateStore() error {
	switch c.Templates.Type {
	case TemplatesFS:
		s, err := templates.NewFSStore(c.Templates.Dir)
		if err != nil {
			return err
		}
		c.TemplateStore = s
	case TemplatesKV:
		if err := c.PrepareKVDatabase(); err != nil {
			return err
		}
		c.TemplateStore = templates.NewKVStore(c.BackendKVDBClient, c.Templates.KeyPrefix)
	case TemplatesSQL:
		if err := c.PrepareSQLDatabases(); err != nil {
			return err
		}
		client, ok := c.BackendSQLDBClients[c.Templates.SQLDB]
		if !ok {
			return fmt.Errorf("templates: no SQL database named %q", c.Templates.SQLDB)
		}
		s, err := templates.NewSQLStore(client, c.Templates.Table)
		if err != nil {
			return err
		}
		c.TemplateStore = s
	default:
		return fmt.Errorf("unsupported template store type %q", c.Templates.Type)
	}
	log.Printf("[INFO][CORE] template store: %s", c.Templates.Type)
	return nil
}

func (c *Core) PrepareAuth() error {
	if c.Auth.PublicKeyPath == "" {
		return nil
	}
	a, err := sec.NewBearerAuth(c.Auth.PublicKeyPath)
	if err != nil {
		return err
	}
	c.BearerAuth = a
	return nil
}

func (c *Core) PrepareThrottleBucketStore() {
	t := c.Throttle
	if t.Burst <= 0 {
		return
	}
	if t.Increment <= 0 {
		t.Increment = 1
	}
	if t.Period <= 0 {
		t.Period = Duration(time.Second)
	}
	if t.CleanupCycle <= 0 {
		t.CleanupCycle = Duration(time.Minute)
	}
	if t.CleanupOlderThan <= 0 {
		t.CleanupOlderThan = Duration(10 * time.Minute)
	}
	c.ThrottleBucketStore = throttle.NewBucketStore[string](c.RootCtx, t.CleanupCycle.Std(), t.CleanupOlderThan.Std())
	c.ThrottleBucketStore.SetBucketGroup(renderThrottleGroup, &throttle.BucketConf{
		Burst:     t.Burst,
		Increment: t.Increment,
		Period:    t.Period.Std(),
	})
	c.AddService(c.ThrottleBucketStore)
}

// AddRouteWrappers adds wrappers applied to the render routes after the
// configured ones.
func (c *Core) AddRouteWrappers(wrappers ...routing.HandlerWrapper) {
	c.extraWrappers = append(c.extraWrappers, wrappers...)
}

// Router mounts the render routes guarded by panic recovery, throttling
// and bearer auth, in that order.
func (c *Core) Router() http.Handler {
	var clock world.Clock
	if c.Render.RealClock {
		clock = time.Now
	}
	c.RenderHandler = render.NewHandler(c.TemplateStore, render.Options{
		JSONKey:       c.Render.JSONKey,
		Timeout:       c.Render.Timeout.Std(),
		MaxConcurrent: c.Render.MaxConcurrent,
		AcquireWait:   c.Render.AcquireWait.Std(),
		Backend:       c.Backend,
		Registry:      c.FontRegistry,
		FilesRoot:     c.FilesRoot,
		Clock:         clock,
	})

	wrappers := []routing.HandlerWrapper{routing.HandlerWrapperFunc(routing.RecoverWrapper)}
	if c.ThrottleBucketStore != nil {
		wrappers = append(wrappers, &throttle.ClientIPWrapper{Store: c.ThrottleBucketStore, GroupID: renderThrottleGroup})
	}
	if c.BearerAuth != nil {
		wrappers = append(wrappers, c.BearerAuth)
	}
	wrappers = append(wrappers, c.extraWrappers...)

	r := &routing.BaseRouter{ServeMux: http.NewServeMux()}
	c.RenderHandler.Register(r, wrappers...)
	return r
}

func (c *Core) PrepareUDSService(sockPath string, cmdMap map[string]uds.CmdHnd) {
	c.UDSService = uds.NewService(c.RootCtx, sockPath, cmdMap)
	c.AddService(c.UDSService)
}

func (c *Core) PrepareWebService(addr string, router http.Handler) {
	c.WebService = web.NewService(c.RootCtx, addr, router)
	c.AddService(c.WebService)
}

// Commands is the operator command set for the UDS service.
func (c *Core) Commands() map[string]uds.CmdHnd {
	if c.commands == nil {
		c.commands = uds.Merge(
			uds.FontCommands(c.FontRegistry),
			uds.TemplateCommands(c.TemplateStore, udsCommandTimeout),
		)
	}
	return c.commands
}

// PrepareAll builds every component from the loaded config and registers
// the services. Call after BaseInit.
func (c *Core) PrepareAll() error {
	c.PrepareFonts()
	if err := c.PrepareBackend(); err != nil {
		return err
	}
	if err := c.PrepareTemplateStore(); err != nil {
		return err
	}
	if err := c.PrepareAuth(); err != nil {
		return err
	}
	c.PrepareThrottleBucketStore()
	c.PrepareWebService(c.Listen, c.Router())
	if c.UDSSocket != "" {
		c.PrepareUDSService(c.UDSSocket, c.Commands())
	}
	return nil
}

func (c *Core) PrepareKVDatabase() error {
	// Load KV Database Config File
	err := c.loadKVDBConf()
	if err != nil {
		return err
	}
	if err = c.prepareKVDBClient(); err != nil {
		return err
	}
	return nil
}

func (c *Core) loadKVDBConf() error {
	confFilePath := filepath.Join(c.AppRoot, "config", ".kv-databases.json")
	confBytes, err := os.ReadFile(confFilePath) // ([]byte, error)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(confBytes, &c.KVDBConf); err != nil {
		return err
	}
	return nil
}

func (c *Core) prepareKVDBClient() error {
	switch c.KVDBConf.Type {
	case "redis":
		c.BackendKVDBClient = &redis.Client{Conf: &c.KVDBConf}
		if err := c.BackendKVDBClient.Init(); err != nil {
			return err
		}
	// case "memcached"
	default:
		return errors.New("unsupported key-value database type")
	}
	return nil
}

func (c *Core) loadSQLDBConfs() error {
	confFilePath := filepath.Join(c.AppRoot, "config", ".sql-databases.json")
	confBytes, err := os.ReadFile(confFilePath) // ([]byte, error)
	if err != nil {
		return err
	}
	c.SQLDBConfs = make(map[string]*sqldb.Conf)
	if err = json.Unmarshal(confBytes, &c.SQLDBConfs); err != nil {
		return err
	}
	return nil
}

// prepareSQLDBClients - Build & Init SQL DB Clients
// Use after loadSQLDBConfs
func (c *Core) prepareSQLDBClients() error {
	c.BackendSQLDBClients = make(map[string]sqldb.Client)
	for dbName, sqlDBConf := range c.SQLDBConfs {
		dbClient, err := sqldb.New(sqlDBConf)
		if err != nil {
			return err
		}
		if err = dbClient.Init(); err != nil {
			return err
		}
		c.BackendSQLDBClients[dbName] = dbClient
	}
	return nil
}

// PrepareSQLDatabases loads .sql-databases.json and initializes a client
// for every entry.
func (c *Core) PrepareSQLDatabases() error {
	if err := c.loadSQLDBConfs(); err != nil {
		return err
	}
	return c.prepareSQLDBClients()
}

func (c *Core) ResourceCleanUp() {
	log.Println("[INFO] App Resource Cleaning Up...")
	if c.BackendKVDBClient != nil {
		db.CloseClient("KV database client", c.BackendKVDBClient)
	}
	for name, sqlDBClient := range c.BackendSQLDBClients {
		db.CloseClient(fmt.Sprintf("%s SQL DB client %q", sqlDBClient.GetConf().Type, name), sqlDBClient)
	}
	if closer, ok := c.TemplateStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("[WARN] closing template store: %v", err)
		}
	}
	log.Println("[INFO] App Resource Cleanup Complete")
}
