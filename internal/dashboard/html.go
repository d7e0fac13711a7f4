package dashboard

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: linear-gradient(135deg, #1e293b, #334155); padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; color: #38bdf8; }
        .header .updated { font-size: 0.8rem; color: #94a3b8; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; padding: 2rem 2rem 0; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.25rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 0.5rem; }
        .card .value { font-size: 1.75rem; font-weight: 700; color: #f1f5f9; }
        .card.accent .value { color: #38bdf8; }
        .card.success .value { color: #4ade80; }
        .card.warning .value { color: #fbbf24; }
        section { padding: 2rem; }
        section h2 { font-size: 1rem; color: #94a3b8; margin-bottom: 0.75rem; }
        table { width: 100%; border-collapse: collapse; background: #1e293b; border-radius: 12px; overflow: hidden; }
        th, td { text-align: left; padding: 0.6rem 0.9rem; border-bottom: 1px solid #334155; font-size: 0.875rem; }
        th { color: #94a3b8; font-weight: 600; }
        .up { color: #f87171; }
        .down { color: #4ade80; }
        .muted { color: #64748b; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <span class="updated" id="updated">loading</span>
    </div>
    <div class="grid">
        <div class="card accent"><div class="label">Products</div><div class="value" id="total">-</div></div>
        <div class="card success"><div class="label">In stock</div><div class="value" id="instock">-</div></div>
        <div class="card"><div class="label">Average price</div><div class="value" id="avg">-</div></div>
        <div class="card"><div class="label">Observations today</div><div class="value" id="today">-</div></div>
        <div class="card warning"><div class="label">Alerts</div><div class="value" id="alertcount">-</div></div>
    </div>
    <section>
        <h2>Price alerts</h2>
        <table><thead><tr><th>Product</th><th>Current</th><th>Previous avg</th><th>Change</th></tr></thead>
        <tbody id="alerts"><tr><td colspan="4" class="muted">No alerts</td></tr></tbody></table>
    </section>
    <section>
        <h2>Tracked products</h2>
        <table><thead><tr><th>ASIN</th><th>Title</th><th>Price</th><th>Availability</th><th>Rating</th><th>Updated</th></tr></thead>
        <tbody id="products"></tbody></table>
    </section>
    <div class="footer">Refreshes every {{.RefreshSeconds}}s</div>
    <script>
        function esc(s) { const d = document.createElement('div'); d.textContent = s == null ? '' : String(s); return d.innerHTML; }
        function money(v, cur) { return v == null ? '-' : (cur ? cur + ' ' : '') + Number(v).toFixed(2); }

        async function getJSON(path) {
            const res = await fetch(path);
            if (!res.ok) throw new Error(path + ' returned ' + res.status);
            return res.json();
        }

        async function refresh() {
            try {
                const [stats, products, alerts] = await Promise.all([
                    getJSON('/api/stats'), getJSON('/api/products?limit=100'), getJSON('/api/alerts')
                ]);
                document.getElementById('total').textContent = stats.total_products;
                document.getElementById('instock').textContent = (stats.by_availability || {}).in_stock || 0;
                document.getElementById('avg').textContent = money(stats.average_price);
                document.getElementById('today').textContent = stats.observations_today;
                document.getElementById('alertcount').textContent = alerts.alerts.length;

                document.getElementById('alerts').innerHTML = alerts.alerts.length === 0
                    ? '<tr><td colspan="4" class="muted">No alerts</td></tr>'
                    : alerts.alerts.map(a =>
                        '<tr><td>' + esc(a.title || a.identifier) + '</td><td>' + money(a.current_price) +
                        '</td><td>' + money(a.previous_average) + '</td><td class="' + (a.change_pct > 0 ? 'up' : 'down') + '">' +
                        (a.change_pct > 0 ? '+' : '') + a.change_pct.toFixed(1) + '%</td></tr>').join('');

                document.getElementById('products').innerHTML = products.products.map(p =>
                    '<tr><td>' + esc(p.identifier) + '</td><td>' + esc(p.title) + '</td><td>' + money(p.current_price, p.currency) +
                    '</td><td>' + esc(p.availability) + '</td><td>' + (p.rating == null ? '-' : p.rating.toFixed(1)) +
                    '</td><td class="muted">' + new Date(p.updated_at).toLocaleString() + '</td></tr>').join('');

                document.getElementById('updated').textContent = 'updated ' + new Date().toLocaleTimeString();
            } catch (e) {
                document.getElementById('updated').textContent = e.message;
            }
        }

        refresh();
        setInterval(refresh, {{.RefreshSeconds}} * 1000);
    </script>
</body>
</html>`
