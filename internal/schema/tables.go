package schema

// CurrentVersion is the schema version every database is brought to.
const CurrentVersion int64 = 9

// ColumnType is the storage family of a column. Only the family is compared
// when checking an existing database.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Real
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Real:
		return "real"
	default:
		return "text"
	}
}

type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	Default string // SQL literal, empty for none
	// Legacy names a column this one replaces; when the column is added its
	// values are copied from the legacy column.
	Legacy string
}

type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

type Table struct {
	Name       string
	AutoID     string // auto-increment integer primary key column
	PrimaryKey []string
	Columns    []Column
	Indexes    []Index
}

// Column looks a column up by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func text(name string) Column { return Column{Name: name, Type: Text} }

func textNN(name, def string) Column {
	return Column{Name: name, Type: Text, NotNull: true, Default: def}
}

func intNN(name string) Column {
	return Column{Name: name, Type: Integer, NotNull: true, Default: "0"}
}

// Tables is the latest shape of the store.
var Tables = []Table{
	{
		Name:       "accounts",
		PrimaryKey: []string{"email"},
		Columns: []Column{
			intNN("account_id"),
			textNN("email", ""),
			text("name"),
			text("display_name"),
			textNN("status", "'student'"),
			text("bio"),
			text("languages"),
			text("specialties"),
			text("time_zone"),
			text("location"),
			text("availability"),
			intNN("created_at"),
			{Name: "rating", Type: Real, NotNull: true, Default: "0"},
			intNN("rating_count"),
		},
		Indexes: []Index{
			{Name: "idx_accounts_account_id", Columns: []string{"account_id"}},
			{Name: "idx_accounts_display_name", Columns: []string{"display_name"}},
		},
	},
	{
		// legacy profile table, superseded by accounts
		Name:       "users",
		PrimaryKey: []string{"email"},
		Columns: []Column{
			textNN("email", ""),
			text("name"),
			text("languages"),
			text("time_zone"),
		},
	},
	{
		Name:       "sessions",
		PrimaryKey: []string{"session_id"},
		Columns: []Column{
			textNN("session_id", ""),
			textNN("host_email", "''"),
			textNN("title", "''"),
			text("language"),
			text("description"),
			textNN("session_date", "''"),
			textNN("session_time", "''"),
			textNN("duration", "''"),
		},
		Indexes: []Index{
			{Name: "idx_sessions_host_email", Columns: []string{"host_email"}},
		},
	},
	{
		Name:       "user_session_join",
		PrimaryKey: []string{"email", "session_id"},
		Columns: []Column{
			textNN("email", ""),
			textNN("session_id", ""),
		},
		Indexes: []Index{
			{Name: "idx_user_session_join_session_id", Columns: []string{"session_id"}},
		},
	},
	{
		// legacy directed friend list, superseded by friendships
		Name:       "friends",
		PrimaryKey: []string{"user_email", "friend_email"},
		Columns: []Column{
			textNN("user_email", ""),
			textNN("friend_email", ""),
		},
	},
	{
		Name:       "messages",
		PrimaryKey: []string{"message_id"},
		Columns: []Column{
			textNN("message_id", ""),
			intNN("chat_id"),
			intNN("sender_id"),
			intNN("receiver_id"),
			textNN("sender_email", "''"),
			textNN("receiver_email", "''"),
			{Name: "content", Type: Text, NotNull: true, Default: "''", Legacy: "message"},
			intNN("sent_at"),
		},
		Indexes: []Index{
			{Name: "idx_messages_chat_sent_at", Columns: []string{"chat_id", "sent_at"}},
			{Name: "idx_messages_sender_id", Columns: []string{"sender_id"}},
			{Name: "idx_messages_receiver_id", Columns: []string{"receiver_id"}},
		},
	},
	{
		Name:   "chats",
		AutoID: "chat_id",
		Columns: []Column{
			intNN("user1_id"),
			intNN("user2_id"),
		},
		Indexes: []Index{
			{Name: "ux_chats_pair", Columns: []string{"user1_id", "user2_id"}, Unique: true},
		},
	},
	{
		Name:   "friend_requests",
		AutoID: "request_id",
		Columns: []Column{
			textNN("from_email", "''"),
			textNN("to_email", "''"),
			textNN("status", "'pending'"),
		},
		Indexes: []Index{
			{Name: "idx_friend_requests_to_email", Columns: []string{"to_email"}},
			{Name: "idx_friend_requests_from_email", Columns: []string{"from_email"}},
		},
	},
	{
		Name:   "friendships",
		AutoID: "id",
		Columns: []Column{
			textNN("user1_email", "''"),
			textNN("user2_email", "''"),
		},
		Indexes: []Index{
			{Name: "ux_friendships_pair", Columns: []string{"user1_email", "user2_email"}, Unique: true},
		},
	},
	{
		Name:   "friend_ratings",
		AutoID: "id",
		Columns: []Column{
			textNN("friend_email", "''"),
			textNN("rater_email", "''"),
			{Name: "rating", Type: Real, NotNull: true, Default: "0"},
			intNN("rated_at"),
		},
		Indexes: []Index{
			{Name: "idx_friend_ratings_friend_email", Columns: []string{"friend_email"}},
			{Name: "idx_friend_ratings_rater_email", Columns: []string{"rater_email"}},
		},
	},
	{
		Name:   "session_invites",
		AutoID: "id",
		Columns: []Column{
			textNN("sender_email", "''"),
			textNN("receiver_email", "''"),
			textNN("title", "''"),
			text("language"),
			textNN("session_date", "''"),
			textNN("session_time", "''"),
			textNN("duration", "''"),
			text("description"),
			textNN("status", "'pending'"),
			intNN("created_at"),
		},
		Indexes: []Index{
			{Name: "idx_session_invites_receiver", Columns: []string{"receiver_email", "status"}},
			{Name: "idx_session_invites_sender", Columns: []string{"sender_email"}},
		},
	},
	{
		Name:   "notifications",
		AutoID: "id",
		Columns: []Column{
			textNN("user_email", "''"),
			textNN("message", "''"),
			intNN("created_at"),
		},
		Indexes: []Index{
			{Name: "idx_notifications_user_email", Columns: []string{"user_email"}},
		},
	},
}

// LookupTable returns the declared table by name.
func LookupTable(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
