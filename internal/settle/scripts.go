package settle

const installBody = `
	if (window.__nanoSettle) window.__nanoSettle.observer.disconnect();
	const state = { count: 0 };
	state.observer = new MutationObserver(list => { state.count += list.length; });
	state.observer.observe(document.body || document.documentElement, { childList: true, subtree: true });
	window.__nanoSettle = state;
`

const installScript = `() => {` + installBody + `	return true;
}`

// pollScript returns the mutations seen since the previous poll and resets
// the counter. -1 means the observer was gone (the document was replaced)
// and has been reinstalled.
const pollScript = `() => {
	const state = window.__nanoSettle;
	if (!state) {` + installBody + `		return -1;
	}
	const n = state.count;
	state.count = 0;
	return n;
}`

const disconnectScript = `() => {
	const state = window.__nanoSettle;
	if (state) state.observer.disconnect();
	window.__nanoSettle = undefined;
	return true;
}`
