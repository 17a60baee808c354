package firebird

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Connection parameters recognized by ConnectParams.
const (
	paramDBPath            = "db_path"
	paramUser              = "user"
	paramPassword          = "password"
	paramClientEncoding    = "client_encoding"
	paramClientMinMessages = "client_min_messages"
	paramTimeZoneNames     = "time_zone_names"
)

// Conn represents a connection to a Firebird database. A Conn is not
// safe for concurrent use by multiple goroutines; statement execution
// is serialized internally, but connection settings are not guarded.
type Conn struct {
	eng engine
	sv  *statusVector

	db            uintptr
	trans         uintptr // default transaction handle
	transInternal uintptr // reserved for the library's own queries

	autocommit        bool
	inUserTransaction bool

	dbPath   string
	user     string
	password string

	// clientEncoding holds the server-parsed character set name. Both
	// fields are populated on demand the first time the encoding is
	// needed; until then the id stays at encodingUnknownID.
	clientEncoding   string
	clientEncodingID int16

	// engineVersion caches the probed server version. versionProbed
	// distinguishes a failed probe, which is also cached, from one that
	// has not run yet.
	engineVersion       string
	engineVersionNumber int
	versionProbed       bool

	timeZoneNames     bool
	getDsplen         bool
	clientMinMessages int

	errMsg string

	mu     sync.Mutex
	closed int32
}

// Option adjusts a connection beyond the basic path and credentials.
type Option func(*connOptions)

type connOptions struct {
	params     map[string]string
	autocommit *bool
	dsplen     *bool
}

// WithClientEncoding requests a specific client character set instead
// of the UTF8 default.
func WithClientEncoding(encoding string) Option {
	return func(o *connOptions) { o.params[paramClientEncoding] = encoding }
}

// WithClientMinMessages sets the minimum severity of diagnostics the
// connection emits.
func WithClientMinMessages(level int) Option {
	return func(o *connOptions) { o.params[paramClientMinMessages] = logLevelName(level) }
}

// WithTimeZoneNames chooses zone-name rendering over numeric offsets
// for TIME ZONE types.
func WithTimeZoneNames(enabled bool) Option {
	return func(o *connOptions) { o.params[paramTimeZoneNames] = strconv.FormatBool(enabled) }
}

// WithAutocommit sets the connection's initial autocommit mode; it is
// on by default.
func WithAutocommit(enabled bool) Option {
	return func(o *connOptions) { o.autocommit = &enabled }
}

// WithDisplayLength enables display-width calculation during result
// materialization; see SetDisplayLength.
func WithDisplayLength(enabled bool) Option {
	return func(o *connOptions) { o.dsplen = &enabled }
}

// Connect creates a connection to a Firebird database providing the
// database path, username and password, plus any options. ConnectParams
// is the keyword-map alternative.
func Connect(dbPath, user, password string, opts ...Option) (*Conn, error) {
	options := connOptions{params: map[string]string{
		paramDBPath:   dbPath,
		paramUser:     user,
		paramPassword: password,
	}}
	for _, opt := range opts {
		opt(&options)
	}

	c, err := ConnectParams(options.params)
	if err != nil {
		return nil, err
	}

	if options.autocommit != nil {
		c.SetAutocommit(*options.autocommit)
	}
	if options.dsplen != nil {
		c.SetDisplayLength(*options.dsplen)
	}
	return c, nil
}

// ConnectParams establishes a new server connection using a parameter
// map. Recognized keys are db_path, user, password, client_encoding,
// client_min_messages and time_zone_names; db_path is required. The
// client encoding defaults to UTF8.
func ConnectParams(params map[string]string) (*Conn, error) {
	eng, err := loadNativeEngine()
	if err != nil {
		return nil, err
	}
	return connectParams(eng, params)
}

// connectParams attaches to the database through the given engine.
func connectParams(eng engine, params map[string]string) (*Conn, error) {
	dbPath, ok := params[paramDBPath]
	if !ok || dbPath == "" {
		return nil, NewError(ErrConnection, "database path not specified")
	}

	c := &Conn{
		eng:               eng,
		sv:                &statusVector{},
		autocommit:        true,
		dbPath:            dbPath,
		clientEncodingID:  encodingUnknownID,
		clientMinMessages: DefaultClientMinMessages,
	}

	if v, ok := params[paramClientMinMessages]; ok {
		c.clientMinMessages, _ = logLevelFromName(v)
	}
	if v, ok := params[paramTimeZoneNames]; ok {
		c.timeZoneNames = v == "true"
	}

	dpb := []byte{iscDpbVersion1}

	if user, ok := params[paramUser]; ok {
		dpb = appendDpbString(dpb, iscDpbUserName, user)
		c.user = user
	}
	if password, ok := params[paramPassword]; ok {
		dpb = appendDpbString(dpb, iscDpbPassword, password)
		c.password = password
	}

	// The requested encoding goes into the parameter block only; the
	// connection caches the server-parsed name and id the first time
	// ClientEncodingID is called.
	encoding := params[paramClientEncoding]
	if encoding == "" {
		encoding = "UTF8"
	}
	dpb = appendDpbString(dpb, iscDpbLcCtype, encoding)

	if st := eng.attachDatabase(c.sv, dbPath, dpb, &c.db); !st.ok() {
		return nil, attachError(c)
	}

	c.initClientEncoding()

	// With Firebird 4 and later, switch time zone types to the extended
	// format so the numeric offset is always available alongside the
	// zone id.
	if c.ServerVersion() >= 40000 {
		c.Exec("SET BIND OF TIME ZONE TO EXTENDED")
	}

	runtime.SetFinalizer(c, (*Conn).Close)

	return c, nil
}

// appendDpbString adds one string-valued item to a database parameter
// block. The item length field is a single byte, so longer values are
// cut off.
func appendDpbString(dpb []byte, tag byte, value string) []byte {
	if len(value) > 255 {
		value = value[:255]
	}
	dpb = append(dpb, tag, byte(len(value)))
	return append(dpb, value...)
}

// attachError drains the status vector of a failed attach into a
// connection error, one interpreted line per diagnostic.
func attachError(c *Conn) error {
	buf := bufferPool.Checkout()
	defer buf.Release()

	line := 0
	for {
		msg, ok := c.eng.interpret(c.sv)
		if !ok {
			break
		}
		if line > 0 {
			buf.WriteString("\n - ")
		}
		buf.WriteString(msg)
		line++
	}

	if line == 0 {
		return NewError(ErrConnection, "unable to attach to database")
	}
	return NewError(ErrConnection, buf.MustString())
}

// Reconnect creates a new connection with the parameters of this one;
// it is up to the caller to Close the old connection. Only the database
// path, credentials and a probed client encoding carry over.
func (c *Conn) Reconnect() (*Conn, error) {
	if c == nil {
		return nil, NewError(ErrConnection, "invalid connection")
	}

	params := map[string]string{
		paramDBPath: c.dbPath,
	}
	if c.user != "" {
		params[paramUser] = c.user
	}
	if c.password != "" {
		params[paramPassword] = c.password
	}
	if c.clientEncoding != "" {
		params[paramClientEncoding] = c.clientEncoding
	}

	return connectParams(c.eng, params)
}

// Close rolls back any open user transaction and detaches from the
// database. Further use of the connection fails with ErrClosed.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trans != 0 {
		c.rollbackTransaction(&c.trans)
	}

	var err error
	if c.db != 0 {
		if st := c.eng.detachDatabase(c.sv, &c.db); !st.ok() {
			err = NewError(ErrConnection, "unable to detach from database")
		}
		c.db = 0
	}

	runtime.SetFinalizer(c, nil)
	return err
}

// isClosed reports whether Close has been called.
func (c *Conn) isClosed() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

// Status determines whether the connection is still active by running
// a harmless information request against the server.
func (c *Conn) Status() ConnStatus {
	if c == nil || c.db == 0 || c.isClosed() {
		return ConnectionBad
	}

	items := []byte{iscInfoPageSize, iscInfoNumBuffers, iscInfoEnd}
	result := make([]byte, 40)

	c.eng.databaseInfo(c.sv, &c.db, items, result)

	if c.sv.hasError() {
		return ConnectionBad
	}
	return ConnectionOK
}

// Ping verifies the connection is still usable, the same way Status
// does, but with an error return for callers that prefer one.
func (c *Conn) Ping() error {
	if c.Status() != ConnectionOK {
		return NewError(ErrConnection, "connection is not usable")
	}
	return nil
}

// ParameterStatus returns a current parameter setting. Recognized
// names are client_encoding, server_version, time_zone_names and
// client_min_messages; any other name reports an empty string.
func (c *Conn) ParameterStatus(paramName string) string {
	if c == nil {
		return ""
	}

	switch paramName {
	case paramClientEncoding:
		return c.ClientEncoding()
	case "server_version":
		return c.ServerVersionString()
	case paramTimeZoneNames:
		if c.timeZoneNames {
			return "enabled"
		}
		return "disabled"
	case paramClientMinMessages:
		if name, ok := logLevelNames[c.clientMinMessages]; ok {
			return name
		}
		return "unknown log level"
	}
	return ""
}

// DBPath returns the database path the connection was opened with.
func (c *Conn) DBPath() string {
	if c == nil {
		return ""
	}
	return c.dbPath
}

// Username returns the username the connection was opened with.
func (c *Conn) Username() string {
	if c == nil {
		return ""
	}
	return c.user
}

// Password returns the password the connection was opened with.
func (c *Conn) Password() string {
	if c == nil {
		return ""
	}
	return c.password
}

// ErrorMessage returns the most recent error message associated with
// the connection, or an empty string.
func (c *Conn) ErrorMessage() string {
	if c == nil {
		return ""
	}
	return c.errMsg
}

// ServerVersion returns the reported server version as an integer
// suitable for comparison, e.g. 2.5.2 = 20502. It returns -1 when the
// version cannot be determined.
func (c *Conn) ServerVersion() int {
	if c == nil {
		return -1
	}
	c.serverVersionInit()
	return c.engineVersionNumber
}

// ServerVersionString returns the reported server version as a string,
// e.g. "2.5.2".
func (c *Conn) ServerVersionString() string {
	if c == nil {
		return ""
	}
	c.serverVersionInit()
	return c.engineVersion
}

const serverVersionQuery = "SELECT CAST(rdb$get_context('SYSTEM', 'ENGINE_VERSION') AS VARCHAR(10)) FROM rdb$database"

// serverVersionInit extracts the database server version on demand and
// caches it in the connection, including a failed probe. A version that
// does not parse as major.minor.revision is reported as 0.
func (c *Conn) serverVersionInit() {
	if c.versionProbed {
		return
	}

	if c.startTransaction(&c.transInternal) != nil {
		return
	}

	res := c.exec(&c.transInternal, serverVersionQuery)

	if res.Status() == StatusTuplesOK && !res.IsNull(0, 0) {
		c.engineVersion = res.Value(0, 0)

		var major, minor, revision int
		if n, _ := fmt.Sscanf(c.engineVersion, "%d.%d.%d", &major, &minor, &revision); n == 3 {
			c.engineVersionNumber = major*10000 + minor*100 + revision
		} else {
			c.engineVersionNumber = 0
		}
	} else {
		c.engineVersion = ""
		c.engineVersionNumber = -1
	}
	c.versionProbed = true

	res.Clear()
	c.commitTransaction(&c.transInternal)
}

// ClientEncodingID returns the character set id of the connection's
// client encoding, probing the server on first use. encodingUnknownID
// is returned while the encoding cannot be determined.
func (c *Conn) ClientEncodingID() int16 {
	if c == nil {
		return encodingUnknownID
	}
	if c.clientEncodingID == encodingUnknownID {
		c.initClientEncoding()
	}
	return c.clientEncodingID
}

// ClientEncoding returns the server-parsed name of the connection's
// client encoding.
func (c *Conn) ClientEncoding() string {
	if c == nil {
		return "n/a"
	}
	if c.clientEncodingID == encodingUnknownID {
		c.initClientEncoding()
	}
	return c.clientEncoding
}

const clientEncodingQuery = `    SELECT TRIM(rdb$character_set_name) AS client_encoding,
           mon$character_set_id AS client_encoding_id
      FROM mon$attachments
INNER JOIN rdb$character_sets
        ON mon$character_set_id = rdb$character_set_id
     WHERE mon$attachment_id = CURRENT_CONNECTION`

// initClientEncoding asks the server how it parsed the requested
// client encoding and caches name and id. The query runs on the
// internal transaction handle; when that handle is already busy the
// probe is abandoned and retried on the next call.
func (c *Conn) initClientEncoding() {
	if c.startTransaction(&c.transInternal) != nil {
		return
	}

	res := c.exec(&c.transInternal, clientEncodingQuery)

	if res.Status() != StatusTuplesOK || res.RowCount() == 0 || res.IsNull(0, 0) {
		res.Clear()
		c.rollbackTransaction(&c.transInternal)
		return
	}

	c.clientEncoding = res.Value(0, 0)

	id, _ := strconv.Atoi(res.Value(0, 1))
	c.clientEncodingID = int16(id)

	res.Clear()
	c.commitTransaction(&c.transInternal)
}

// SetTimeZoneNames indicates whether to return time zone names, where
// available, instead of numeric offsets.
func (c *Conn) SetTimeZoneNames(timeZoneNames bool) {
	if c != nil {
		c.timeZoneNames = timeZoneNames
	}
}

// SetClientMinMessages sets the minimum severity of diagnostics the
// connection emits.
func (c *Conn) SetClientMinMessages(level int) {
	if c != nil {
		c.clientMinMessages = level
	}
}

// SetClientMinMessagesString sets the minimum diagnostic severity by
// name, e.g. "WARNING".
func (c *Conn) SetClientMinMessagesString(level string) error {
	if c == nil {
		return NewError(ErrConnection, "invalid connection")
	}

	id, ok := logLevelFromName(level)
	if !ok {
		return NewError(ErrGeneric, fmt.Sprintf("unknown log level %q", level))
	}
	c.clientMinMessages = id
	return nil
}

// SetDisplayLength determines whether the display width of each datum
// is calculated when results are materialized. This is convenient for
// applications formatting tabular output, but adds overhead, so it is
// off by default.
func (c *Conn) SetDisplayLength(getDsplen bool) {
	if c != nil {
		c.getDsplen = getDsplen
	}
}
