package action

// resolveFn locates the element addressed by a synthesized selector. Scopes
// are separated by " >>> " and each boundary descends into the host's
// shadowRoot. Inside a scope a structural path must match at exactly its own
// depth, so a path anchored at the scope root cannot match deeper copies.
const resolveFn = `
	const resolve = (selector) => {
		let root = document;
		let el = null;
		for (const scope of selector.split(' >>> ')) {
			if (el) {
				root = el.shadowRoot;
				if (!root) return null;
			}
			if (scope.startsWith('#') || scope.startsWith('[id=')) {
				el = root.querySelector(scope);
			} else {
				const depth = scope.split(' > ').length;
				const depthOf = (node) => {
					let d = 1;
					while (node.parentNode && node.parentNode !== root) {
						node = node.parentNode;
						d++;
					}
					return node.parentNode === root ? d : -1;
				};
				el = Array.from(root.querySelectorAll(scope)).find(node => depthOf(node) === depth) || null;
			}
			if (!el) return null;
		}
		return el;
	};
`

const clickScript = `(args) => {` + resolveFn + `
	const el = resolve(args.selector);
	if (!el) return { found: false, submitted: false };
	if (typeof el.focus === 'function') el.focus();
	el.click();
	return { found: true, submitted: false };
}`

// typeScript sets the value, notifies reactive listeners, then submits the
// enclosing form after args.submitDelay milliseconds.
const typeScript = `(args) => {` + resolveFn + `
	const el = resolve(args.selector);
	if (!el) return { found: false, submitted: false };
	if (typeof el.focus === 'function') el.focus();
	el.value = args.value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.dispatchEvent(new KeyboardEvent('keydown', { key: 'Enter', code: 'Enter', keyCode: 13, bubbles: true }));
	const form = el.form || (typeof el.closest === 'function' ? el.closest('form') : null);
	if (!form) return { found: true, submitted: false };
	setTimeout(() => {
		if (!form.isConnected) return;
		if (typeof form.requestSubmit === 'function') form.requestSubmit();
		else form.submit();
	}, args.submitDelay);
	return { found: true, submitted: true };
}`

const scrollScript = `(args) => {
	window.scrollBy({ top: args.amount, behavior: 'smooth' });
	return true;
}`
