package perception

// Page-side functions. They only read DOM facts and draw markers; filtering,
// truncation, classification and selector synthesis happen in Go.

const overlayAttr = "data-nano-overlay"

// collectScript removes old overlays, gathers affordance candidates (walking
// into shadow roots) and stashes them for describeScript.
const collectScript = `(args) => {
	document.querySelectorAll('[` + overlayAttr + `]').forEach(el => el.remove());

	const found = [];
	const walk = (root) => {
		if (!root) return;
		root.querySelectorAll(args.affordance).forEach(el => found.push(el));
		root.querySelectorAll('*').forEach(node => {
			if (node.shadowRoot) walk(node.shadowRoot);
		});
	};
	walk(document);

	window.__nanoScan = found;

	const clip = (s) => (s || '').substring(0, args.rawTextLimit);
	return {
		viewportHeight: window.innerHeight,
		candidates: found.map((el, ordinal) => {
			const rect = el.getBoundingClientRect();
			return {
				ordinal: ordinal,
				tag: el.tagName,
				innerText: clip(el.innerText),
				value: typeof el.value === 'string' ? clip(el.value) : '',
				ariaLabel: clip(el.getAttribute('aria-label')),
				rect: { x: rect.left, y: rect.top, width: rect.width, height: rect.height },
			};
		}),
	};
}`

// describeScript returns the structural path of each requested candidate and
// optionally draws index badges over them. Detached candidates yield null and
// do not consume a badge number, matching the Go-side renumbering.
const describeScript = `(args) => {
	const found = window.__nanoScan || [];

	const scopeOf = (node) => {
		const segs = [];
		let current = node;
		while (current && current.nodeType === Node.ELEMENT_NODE) {
			const parent = current.parentElement ||
				(current.parentNode instanceof ShadowRoot ? current.parentNode : null);
			const siblings = parent ? Array.from(parent.children) : [current];
			const root = current.getRootNode();
			const id = current.id || '';
			let idUnique = false;
			if (id && root.querySelectorAll) {
				idUnique = root.querySelectorAll('[id="' + CSS.escape(id) + '"]').length === 1;
			}
			segs.unshift({
				tag: current.nodeName,
				id: id,
				idUnique: idUnique,
				position: siblings.indexOf(current) + 1,
				siblings: siblings.length,
			});
			current = parent instanceof ShadowRoot ? null : parent;
		}
		return segs;
	};

	const pathOf = (el) => {
		const scopes = [];
		let node = el;
		while (node) {
			scopes.unshift(scopeOf(node));
			const root = node.getRootNode();
			node = root instanceof ShadowRoot ? root.host : null;
		}
		return { scopes: scopes };
	};

	let badge = 0;
	return args.items.map(item => {
		const el = found[item.ordinal];
		if (!el || !el.isConnected) return null;
		const index = badge++;

		if (args.overlays) {
			const rect = el.getBoundingClientRect();
			const box = document.createElement('div');
			box.setAttribute('` + overlayAttr + `', '');
			Object.assign(box.style, {
				position: 'fixed', left: rect.left + 'px', top: rect.top + 'px',
				width: rect.width + 'px', height: rect.height + 'px',
				border: '2px solid #2563eb', backgroundColor: 'rgba(37, 99, 235, 0.05)',
				zIndex: '2147483647', pointerEvents: 'none', borderRadius: '4px', boxSizing: 'border-box',
			});
			const label = document.createElement('div');
			label.textContent = String(index);
			Object.assign(label.style, {
				position: 'absolute', top: '-18px', left: '0', pointerEvents: 'none',
				background: '#2563eb', color: 'white', fontSize: '12px',
				padding: '2px 6px', borderRadius: '4px', fontWeight: 'bold',
			});
			box.appendChild(label);
			document.documentElement.appendChild(box);
		}

		return pathOf(el);
	});
}`

const clearOverlaysScript = `() => {
	document.querySelectorAll('[` + overlayAttr + `]').forEach(el => el.remove());
	window.__nanoScan = undefined;
	return true;
}`

// extractScript climbs from short currency-bearing elements to an ancestor
// with substantial text and returns the unique ancestor texts.
const extractScript = `(args) => {
	const seen = new Set();
	const out = [];
	const nodes = document.querySelectorAll('*');
	for (const el of nodes) {
		if (out.length >= args.rawLimit) break;
		const txt = el.innerText;
		if (!txt || txt.length >= args.maxMatchLength) continue;
		if (!args.markers.some(m => txt.includes(m))) continue;
		let parent = el.parentElement;
		while (parent && (parent.innerText || '').length < args.contextLength) parent = parent.parentElement;
		if (!parent) continue;
		const context = parent.innerText;
		if (seen.has(context)) continue;
		seen.add(context);
		out.push(context);
	}
	return out;
}`
