package dispatch

// Selection is either Unselected (the zero value) or Selected(id).
type Selection struct {
	id  string
	set bool
}

func Unselected() Selection {
	return Selection{}
}

func Selected(id string) Selection {
	return Selection{id: id, set: true}
}

func (s Selection) ID() (string, bool) {
	return s.id, s.set
}

func (s Selection) IsSet() bool {
	return s.set
}

// Is reports whether s is Selected(id).
func (s Selection) Is(id string) bool {
	return s.set && s.id == id
}

func (s Selection) String() string {
	if !s.set {
		return "unselected"
	}
	return s.id
}
