package models

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. The key doubles as the English text.
const (
	MsgNoConnection   = "No internet connection"
	MsgDownloadFailed = "Download failed"
	MsgScriptTimeout  = "The page did not finish loading its content"
	MsgCanceled       = "Download canceled"
)

func init() {
	for _, m := range []struct {
		tag       language.Tag
		key, text string
	}{
		{language.Dutch, MsgNoConnection, "Geen internetverbinding"},
		{language.Dutch, MsgDownloadFailed, "Downloaden mislukt"},
		{language.Dutch, MsgScriptTimeout, "De pagina heeft haar inhoud niet volledig geladen"},
		{language.Dutch, MsgCanceled, "Downloaden geannuleerd"},
		{language.French, MsgNoConnection, "Pas de connexion internet"},
		{language.French, MsgDownloadFailed, "Échec du téléchargement"},
		{language.French, MsgScriptTimeout, "La page n'a pas fini de charger son contenu"},
		{language.French, MsgCanceled, "Téléchargement annulé"},
	} {
		_ = message.SetString(m.tag, m.key, m.text)
	}
}

// Localize returns the text for key in the language of tag, falling back to
// English.
func Localize(tag language.Tag, key string) string {
	return message.NewPrinter(tag).Sprintf(key)
}
