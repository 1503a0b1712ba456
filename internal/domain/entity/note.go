package entity

type NoteVisibility string

const (
	VisibilityPublic    NoteVisibility = "public"
	VisibilityHome      NoteVisibility = "home"
	VisibilityFollowers NoteVisibility = "followers"
	VisibilitySpecified NoteVisibility = "specified"
)

func ParseNoteVisibility(s string) NoteVisibility {
	switch v := NoteVisibility(s); v {
	case VisibilityPublic, VisibilityHome, VisibilityFollowers, VisibilitySpecified:
		return v
	default:
		return VisibilityHome
	}
}

type Note struct {
	Text       string
	Visibility NoteVisibility
}

func NewNoteFromMessage(msg *Message, visibility NoteVisibility) *Note {
	return &Note{
		Text:       msg.Text,
		Visibility: visibility,
	}
}

func NewNote(text string, visibility NoteVisibility) *Note {
	return &Note{
		Text:       text,
		Visibility: visibility,
	}
}
