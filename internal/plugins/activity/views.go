package activity

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/trainerhub/trainerhub/internal/templates/layouts"
)

// viewerScript loads /activities once, then follows /activities/stream.
// Browsers without EventSource, or whose stream fails, poll every 3s.
// Records are kept by id and drawn newest-first by timestamp.
const viewerScript = `(function(){
var limit = parseInt(document.getElementById("activity-log").dataset.limit, 10);
var csrf = document.querySelector('meta[name="csrf-token"]').content;
var rows = document.getElementById("activity-rows");
var records = new Map();
var pollTimer = null;

function render(){
  var list = Array.from(records.values()).sort(function(a, b){
    var d = new Date(a.timestamp) - new Date(b.timestamp);
    return d !== 0 ? d : a.id - b.id;
  });
  while (list.length > limit) { records.delete(list.shift().id); }
  rows.replaceChildren();
  list.reverse().forEach(function(r){
    var tr = document.createElement("tr");
    [r.time, r.type, r.user || "anonymous", r.message, JSON.stringify(r.details)].forEach(function(v){
      var td = document.createElement("td");
      td.textContent = v;
      tr.appendChild(td);
    });
    rows.appendChild(tr);
  });
  document.getElementById("activity-count").textContent = list.length;
}

function load(){
  return fetch("/activities?limit=" + limit, {headers: {"Accept": "application/json"}, credentials: "same-origin"})
    .then(function(res){ return res.json(); })
    .then(function(body){
      records.clear();
      body.activities.forEach(function(r){ records.set(r.id, r); });
      render();
    });
}

function poll(){
  if (pollTimer === null) { pollTimer = setInterval(load, 3000); }
}

function stream(){
  if (!window.EventSource) { poll(); return; }
  var es = new EventSource("/activities/stream");
  es.addEventListener("activity", function(ev){
    var r = JSON.parse(ev.data);
    records.set(r.id, r);
    render();
  });
  es.onerror = function(){ es.close(); poll(); };
}

document.getElementById("activity-clear").addEventListener("click", function(){
  fetch("/activities/clear", {method: "POST", headers: {"X-CSRF-Token": csrf, "Accept": "application/json"}, credentials: "same-origin"})
    .then(function(){ records.clear(); render(); });
});

load().then(stream, poll);
})();`

// ViewerPage renders the activity viewer shell. limit is the number of
// records it requests and keeps on screen.
func ViewerPage(limit int) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section id="activity-log" data-limit="%d">`+
			`<h1>User activity <span class="muted">(<span id="activity-count">0</span>)</span></h1>`+
			`<p><button type="button" id="activity-clear">Clear</button></p>`+
			`<table><thead><tr><th>Time</th><th>Type</th><th>User</th><th>Message</th><th>Details</th></tr></thead>`+
			`<tbody id="activity-rows"></tbody></table></section>`+
			`<script>%s</script>`, limit, viewerScript)
		return err
	})
	return layouts.Base("Activity log", body)
}
