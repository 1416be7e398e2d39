package cdp

import (
	"encoding/json"
	"fmt"
)

// The page keeps a registry so handles carry a stable id per live node. Ids
// are never reused; a handle whose node left the document is stale.
const registryJS = `(window.__smokeRegistry = window.__smokeRegistry || {next: 1, ids: new WeakMap(), nodes: new Map()})`

// queryJS returns {id, tag, text, attrs} for every match in document order.
// text is never truncated since editor content is matched against it.
func queryJS(selector string) string {
	return fmt.Sprintf(`(function(sel) {
	const reg = %s;
	return Array.from(document.querySelectorAll(sel)).map(function(el) {
		let id = reg.ids.get(el);
		if (!id) {
			id = reg.next++;
			reg.ids.set(el, id);
			reg.nodes.set(id, new WeakRef(el));
		}
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		const text = (el.innerText || el.textContent || '').trim();
		return {id: id, tag: el.tagName.toLowerCase(), text: text, attrs: attrs};
	});
})(%s)`, registryJS, jsString(selector))
}

// locateJS scrolls the node into view and returns its centre, or stale=true
func locateJS(id int64) string {
	return fmt.Sprintf(`(function(id) {
	const reg = %s;
	const ref = reg.nodes.get(id);
	const el = ref && ref.deref();
	if (!el || !el.isConnected) {
		reg.nodes.delete(id);
		return {stale: true};
	}
	el.scrollIntoView({block: 'center', inline: 'center'});
	const r = el.getBoundingClientRect();
	return {stale: false, x: r.left + r.width / 2, y: r.top + r.height / 2, w: r.width, h: r.height};
})(%d)`, registryJS, id)
}

const snapshotJS = `(function() {
	const dt = document.doctype ? new XMLSerializer().serializeToString(document.doctype) : '<!DOCTYPE html>';
	return dt + document.documentElement.outerHTML;
})()`

const readyStateJS = `document.readyState`

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type queryResult struct {
	ID    int64             `json:"id"`
	Tag   string            `json:"tag"`
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs"`
}

type locateResult struct {
	Stale bool    `json:"stale"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}
