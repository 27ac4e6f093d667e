package bridge

import "fmt"

// ObjectName is the global the extraction scripts call into:
// window.ContentScraper.content(text, link) and window.ContentScraper.finished().
const ObjectName = "ContentScraper"

// Shim returns the script that installs window.ContentScraper for attempt,
// forwarding every call to the engine binding named binding as a
// {a, k, t, l} object. It must run before the extraction script.
func Shim(binding string, attempt uint64) string {
	return fmt.Sprintf(`(function () {
  var send = window[%[1]q];
  window[%[2]q] = {
    content: function (text, link) {
      send({a: %[3]d, k: "item", t: String(text == null ? "" : text), l: link == null ? "" : String(link)});
    },
    finished: function () {
      send({a: %[3]d, k: "done"});
    }
  };
})();
`, binding, ObjectName, attempt)
}
