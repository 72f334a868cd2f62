package surfer

// MacroAttr is a typed accessor over a session's macro map. Macro values
// are shared by every view switched from the same session, so a robot
// flavor can declare its settings once and read them from any view:
//
//	var Username = surfer.MacroAttr[string]{Name: "username"}
//
//	func (r LoginRobot) Login(ctx context.Context) error {
//		field, err := r.Search(ctx, driver.CSS("#user"))
//		if err != nil {
//			return err
//		}
//		return field.Fill(Username.Get(r.Session))
//	}
type MacroAttr[T any] struct {
	Name    string
	Default T
}

// Get returns the attribute, or Default when unset or of another type.
func (a MacroAttr[T]) Get(s *Session) T {
	v, ok := s.Macro(a.Name)
	if !ok {
		return a.Default
	}
	typed, ok := v.(T)
	if !ok {
		return a.Default
	}
	return typed
}

// Set stores the attribute.
func (a MacroAttr[T]) Set(s *Session, v T) {
	s.SetMacro(a.Name, v)
}

// MaxRetries bounds the retries of Navigate after transient failures.
var MaxRetries = MacroAttr[int]{Name: "max_retries", Default: DefaultMaxRetries}

// DefaultMaxRetries is the max_retries value of new sessions.
const DefaultMaxRetries = 5
