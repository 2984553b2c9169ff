// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package web

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>rtcdash</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#0f172a;color:#e2e8f0;margin:0;padding:16px 20px}
h1{font-size:16px;margin:0 0 4px}
.src{font-size:11px;color:#64748b;margin-bottom:12px}
.conn{display:inline-block;width:8px;height:8px;border-radius:50%;background:#64748b;margin-right:6px}
.conn.live{background:#22c55e}
table{border-collapse:collapse;width:100%}
th{text-align:left;padding:6px 8px;font-size:10px;color:#64748b;text-transform:uppercase;border-bottom:1px solid #334155}
td{padding:6px 8px;border-bottom:1px solid #334155;font-size:12px;vertical-align:middle}
img{max-width:320px;max-height:180px;display:block;background:#1e293b}
.up{color:#22c55e}.pending{color:#eab308}.down{color:#ef4444}.unknown{color:#94a3b8}
</style>
</head>
<body>
<h1><span class="conn" id="conn"></span>rtcdash</h1>
<div class="src">{{.Source}}</div>
<table>
<thead><tr><th>Port</th><th>Client</th><th>Video</th><th>Bitrate</th><th>State</th></tr></thead>
<tbody id="rows">
{{range .Rows}}<tr data-client="{{.ClientID}}">
<td>{{.Port}}</td><td>{{.ClientID}}</td>
<td>{{if .Frame}}<img alt="" src="/api/frames/{{.ClientID}}">{{else}}<img alt="">{{end}}</td>
<td data-tag="bps">{{.Bitrate}}</td><td data-tag="state" class="{{.Health}}">{{.State}}</td>
</tr>
{{end}}</tbody>
</table>
<script>
(function(){
  var body = document.getElementById('rows');
  var conn = document.getElementById('conn');
  var known = {};
  Array.prototype.forEach.call(body.rows, function(tr){ known[tr.dataset.client] = tr; });

  function td(text){ var c = document.createElement('td'); c.textContent = text; return c; }

  function createRow(r){
    var tr = document.createElement('tr');
    tr.dataset.client = r.client_id;
    tr.appendChild(td(r.port));
    tr.appendChild(td(r.client_id));
    var v = document.createElement('td'); var img = document.createElement('img'); img.alt = ''; v.appendChild(img); tr.appendChild(v);
    var bps = td(r.bps); bps.dataset.tag = 'bps'; tr.appendChild(bps);
    var st = td(r.state); st.dataset.tag = 'state'; tr.appendChild(st);
    body.appendChild(tr);
    known[r.client_id] = tr;
    return tr;
  }

  function apply(msg){
    var seen = {};
    (msg.rows || []).forEach(function(r){
      seen[r.client_id] = true;
      var tr = known[r.client_id] || createRow(r);
      if (r.video) { tr.querySelector('img').src = r.video; }
      tr.querySelector('[data-tag=bps]').textContent = r.bps;
      var st = tr.querySelector('[data-tag=state]');
      st.textContent = r.state;
      st.className = r.health;
    });
    Object.keys(known).forEach(function(id){
      if (!seen[id]) { body.removeChild(known[id]); delete known[id]; }
    });
  }

  function connect(){
    var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
    ws.onopen = function(){ conn.className = 'conn live'; };
    ws.onmessage = function(e){ apply(JSON.parse(e.data)); };
    ws.onclose = function(){ conn.className = 'conn'; setTimeout(connect, 2000); };
  }
  connect();
})();
</script>
</body>
</html>
`
