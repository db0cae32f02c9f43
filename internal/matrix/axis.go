package matrix

// DefaultsPrefix is prepended to an axis default key to form the variable that
// carries its default (MATRIX_DEFAULT_HOST_OS, MATRIX_DEFAULT_USE_M2CRYPTO, ...).
const DefaultsPrefix = "MATRIX_DEFAULT_"

// LabelKey names an include entry without being an axis.
const LabelKey = "TEST_NAME"

// Axis is one configuration dimension of the matrix.
type Axis struct {
	// Name is the key used in include entries.
	Name string
	// Env is the variable the resolved value is emitted as. Defaults to Name.
	Env string
	// DefaultKey selects the default shared by several axes. Defaults to Name.
	DefaultKey string
	// Optional axes may resolve to absent, in which case nothing is emitted.
	Optional bool
}

// EnvName returns the variable the axis is emitted as.
func (a Axis) EnvName() string {
	if a.Env != "" {
		return a.Env
	}
	return a.Name
}

// DefaultName returns the key the axis reads its default from.
func (a Axis) DefaultName() string {
	if a.DefaultKey != "" {
		return a.DefaultKey
	}
	return a.Name
}

// Role is a side of the client/server pair that resolves some axes
// independently.
type Role string

const (
	RoleServer Role = "SERVER"
	RoleClient Role = "CLIENT"
)

// RoleAxes expands key into one axis per role, all reading the same default.
// RoleAxes("USE_M2CRYPTO", RoleServer, RoleClient) yields SERVER_USE_M2CRYPTO
// and CLIENT_USE_M2CRYPTO.
func RoleAxes(key string, roles ...Role) []Axis {
	axes := make([]Axis, 0, len(roles))
	for _, role := range roles {
		axes = append(axes, Axis{
			Name:       string(role) + "_" + key,
			DefaultKey: key,
		})
	}
	return axes
}

// StandardAxes returns the axes of the DIRAC integration matrix.
func StandardAxes() []Axis {
	axes := []Axis{
		{Name: "HOST_OS"},
		{Name: "MYSQL_VER"},
		{Name: "ES_VER"},
	}
	axes = append(axes, RoleAxes("USE_M2CRYPTO", RoleServer, RoleClient)...)
	axes = append(axes, Axis{
		Name:     "USE_NEWTHREADPOOL",
		Env:      "DIRAC_USE_NEWTHREADPOOL",
		Optional: true,
	})
	return axes
}

// StandardDefaults returns the built-in defaults for StandardAxes.
func StandardDefaults() map[string]Value {
	return map[string]Value{
		"HOST_OS":           Some("cc7"),
		"MYSQL_VER":         Some("5.7"),
		"ES_VER":            Some("7.9.1"),
		"USE_M2CRYPTO":      Some("Yes"),
		"USE_NEWTHREADPOOL": None(),
	}
}
